package namespace

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/mqtt"
)

// ConnectivityPath is the leaf reflecting last-known login success.
// Set true after a successful credential exchange, false on shutdown.
const ConnectivityPath = "info.connection"

// watchBuffer is the per-watcher update channel buffer size.
// Slow watchers drop updates rather than stall the poll cycle.
const watchBuffer = 256

// Bus is the interface the store needs from the MQTT client.
// This allows mocking in tests and flexibility in implementation.
type Bus interface {
	// PublishRetained publishes a retained message with the default QoS.
	PublishRetained(topic string, payload []byte) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Logger is the interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// WriteHandler receives write intents against writable leaves.
// The value is the decoded payload (bool, float64, or string).
type WriteHandler func(path string, value any)

// Store is the namespace store: an object tree persisted in SQLite and
// mirrored to retained MQTT state topics.
//
// Containers are created once, lazily, the first time a leaf beneath them
// is written; subsequent EnsureObject calls for the same path are no-ops.
// Leaves are overwritten in place and never pruned.
type Store struct {
	repo Repository
	bus  Bus

	// objects tracks created objects so repeat creation skips the database.
	objects  map[string]Object
	writable map[string]bool
	mu       sync.RWMutex

	// handler receives writes on writable leaves (may be nil).
	handler   WriteHandler
	handlerMu sync.RWMutex

	// watchers receive leaf updates for live streaming.
	watchers  map[chan Update]struct{}
	watcherMu sync.Mutex

	logger Logger
}

// NewStore creates a namespace store backed by the given repository and bus.
// Call Load before first use to warm the object set from the database.
func NewStore(repo Repository, bus Bus, logger Logger) *Store {
	return &Store{
		repo:     repo,
		bus:      bus,
		objects:  make(map[string]Object),
		writable: make(map[string]bool),
		watchers: make(map[chan Update]struct{}),
		logger:   logger,
	}
}

// Load warms the in-memory object set from the database so that
// create-if-absent checks survive restarts without touching SQLite.
func (s *Store) Load(ctx context.Context) error {
	objects, err := s.repo.ListObjects(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range objects {
		s.objects[obj.Path] = obj
		if obj.Writable {
			s.writable[obj.Path] = true
		}
	}
	return nil
}

// EnsureObject creates an object if it does not already exist.
// Existing objects are left untouched, preserving any prior metadata.
func (s *Store) EnsureObject(ctx context.Context, obj Object) error {
	if obj.Path == "" {
		return ErrInvalidPath
	}

	s.mu.RLock()
	_, exists := s.objects[obj.Path]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	if _, err := s.repo.CreateObjectIfNotExists(ctx, obj); err != nil {
		return err
	}

	s.mu.Lock()
	s.objects[obj.Path] = obj
	if obj.Writable {
		s.writable[obj.Path] = true
	}
	s.mu.Unlock()
	return nil
}

// SetLeaf writes a leaf value: the state object is created if absent,
// the value is persisted, published retained to the state topic, and
// fanned out to watchers.
func (s *Store) SetLeaf(ctx context.Context, leaf Leaf) error {
	if leaf.Path == "" {
		return ErrInvalidPath
	}

	if err := s.EnsureObject(ctx, Object{
		Path:      leaf.Path,
		Type:      TypeState,
		Name:      leaf.Name,
		Role:      leaf.Role,
		ValueType: leaf.Type,
		Writable:  leaf.Writable,
	}); err != nil {
		return err
	}

	payload, err := json.Marshal(leaf.Value)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertState(ctx, leaf.Path, string(payload), true); err != nil {
		return err
	}

	// Mirror to the bus. A publish failure is logged but does not fail the
	// write: the retained topic catches up on the next poll cycle.
	topic := mqtt.Topics{}.StateLeaf(leaf.Path)
	if err := s.bus.PublishRetained(topic, payload); err != nil && s.logger != nil {
		s.logger.Warn("failed to publish leaf", "path", leaf.Path, "error", err)
	}

	s.notify(Update{
		Path:    leaf.Path,
		Value:   leaf.Value,
		Type:    string(leaf.Type),
		Ack:     true,
		Updated: time.Now().UTC().Format(time.RFC3339),
	})

	return nil
}

// SetConnectivity sets the connectivity indicator leaf.
func (s *Store) SetConnectivity(ctx context.Context, connected bool) error {
	return s.SetLeaf(ctx, Leaf{
		Path:  ConnectivityPath,
		Value: connected,
		Type:  ValueBoolean,
		Role:  "indicator.connected",
		Name:  "Controller connection",
	})
}

// IsWritable reports whether a leaf accepts external write intents.
func (s *Store) IsWritable(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writable[path]
}

// GetState returns the persisted raw value of a leaf.
func (s *Store) GetState(ctx context.Context, path string) (string, error) {
	return s.repo.GetState(ctx, path)
}

// LeafCount returns the number of persisted leaves.
func (s *Store) LeafCount(ctx context.Context) (int, error) {
	return s.repo.CountStates(ctx)
}

// SetWriteHandler registers the handler invoked for write intents on
// writable leaves.
func (s *Store) SetWriteHandler(h WriteHandler) {
	s.handlerMu.Lock()
	s.handler = h
	s.handlerMu.Unlock()
}

// StartWriteListener subscribes to the set-topic subtree and routes
// write intents. Writes to unknown or read-only leaves are accepted but
// inert; writes to writable leaves invoke the registered WriteHandler.
func (s *Store) StartWriteListener() error {
	return s.bus.Subscribe(mqtt.Topics{}.AllSetLeaves(), 1, func(topic string, payload []byte) error {
		path := mqtt.Topics{}.SetTopicToPath(topic)
		if path == "" {
			return nil
		}

		if !s.IsWritable(path) {
			if s.logger != nil {
				s.logger.Debug("ignoring write to non-writable leaf", "path", path)
			}
			return nil
		}

		s.handlerMu.RLock()
		handler := s.handler
		s.handlerMu.RUnlock()
		if handler == nil {
			return nil
		}

		handler(path, decodeValue(payload))
		return nil
	})
}

// Watch returns a channel of leaf updates and a cancel function.
// Updates are dropped for watchers that fall behind.
func (s *Store) Watch() (<-chan Update, func()) {
	ch := make(chan Update, watchBuffer)

	s.watcherMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watcherMu.Unlock()

	cancel := func() {
		s.watcherMu.Lock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
		s.watcherMu.Unlock()
	}
	return ch, cancel
}

// notify fans an update out to all watchers without blocking.
func (s *Store) notify(update Update) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- update:
		default:
			// Watcher is full; drop rather than stall the poll cycle.
		}
	}
}

// decodeValue interprets a set-topic payload as a JSON scalar,
// falling back to the raw string for bare values.
func decodeValue(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return string(payload)
	}
	return v
}
