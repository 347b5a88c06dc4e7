package omada

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/mqtt"
)

// HealthStatus describes the bridge's operational state.
type HealthStatus string

// Health statuses.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// SessionInfo exposes the session fields the health message carries.
// Satisfied by *Session.
type SessionInfo interface {
	State() SessionState
	ControllerID() string
}

// HealthMessage is the JSON document published to the health topic.
type HealthMessage struct {
	BridgeID     string       `json:"bridge_id"`
	Status       HealthStatus `json:"status"`
	Version      string       `json:"version"`
	UptimeSec    int64        `json:"uptime_sec"`
	SessionState string       `json:"session_state"`
	ControllerID string       `json:"controller_id,omitempty"`
	Sites        int          `json:"sites"`
	Reason       string       `json:"reason,omitempty"`
	Timestamp    string       `json:"timestamp"`
}

// HealthReporter publishes periodic bridge health to the bus.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	session   SessionInfo

	siteCount   int
	siteCountMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status (default 30s).
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Session supplies session state for the health payload.
	Session SessionInfo
}

// NewHealthReporter creates a health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		session:   cfg.Session,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until Stop or context
// cancellation.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		//nolint:errcheck // best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetSiteCount updates the discovered site count.
func (h *HealthReporter) SetSiteCount(count int) {
	h.siteCountMu.Lock()
	h.siteCount = count
	h.siteCountMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status during initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.session != nil && h.session.State() != StateAuthenticated {
		return HealthDegraded, "controller session " + string(h.session.State())
	}
	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.siteCountMu.RLock()
	siteCount := h.siteCount
	h.siteCountMu.RUnlock()

	msg := HealthMessage{
		BridgeID:  h.bridgeID,
		Status:    status,
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
		Sites:     siteCount,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.session != nil {
		msg.SessionState = string(h.session.State())
		msg.ControllerID = h.session.ControllerID()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(mqtt.Topics{}.BridgeHealth(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	if h.logger != nil {
		h.logger.Error(msg, "error", err)
	}
}
