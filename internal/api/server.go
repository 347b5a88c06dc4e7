package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-omada/internal/namespace"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeStatus exposes the poll and session state the status document
// reports. Satisfied by the bridge wiring in main.
type BridgeStatus interface {
	// SessionState returns the session lifecycle state string.
	SessionState() string

	// ControllerID returns the discovered controller instance id.
	ControllerID() string

	// SiteCount returns the number of discovered sites.
	SiteCount() int

	// LastCycle returns when the most recent poll cycle completed.
	LastCycle() time.Time

	// LeafCount returns the number of persisted namespace leaves.
	LeafCount(ctx context.Context) (int, error)
}

// HealthChecker reports component liveness for /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Watcher provides the leaf update stream for WebSocket clients.
// Satisfied by *namespace.Store.
type Watcher interface {
	Watch() (<-chan namespace.Update, func())
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  BridgeStatus
	MQTT    HealthChecker
	DB      HealthChecker
	Updates Watcher
	Version string
}

// Server is the HTTP status server for the Omada bridge.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	bridge  BridgeStatus
	mqtt    HealthChecker
	db      HealthChecker
	updates Watcher
	version string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// statusDocument is the /status response body.
type statusDocument struct {
	Version      string `json:"version"`
	SessionState string `json:"session_state"`
	ControllerID string `json:"controller_id,omitempty"`
	Sites        int    `json:"sites"`
	LastCycle    string `json:"last_cycle,omitempty"`
	Leaves       int    `json:"leaves"`
	Timestamp    string `json:"timestamp"`
}

// New creates a status server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge status source is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		bridge:  deps.Bridge,
		mqtt:    deps.MQTT,
		db:      deps.DB,
		updates: deps.Updates,
		version: deps.Version,
	}, nil
}

// Start builds the router and begins listening in a background
// goroutine. The server can be stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.updates != nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
		go s.pumpUpdates(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("status server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("status server not started")
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if s.hub != nil {
		r.Get("/ws", s.handleWebSocket)
	}

	return r
}

// handleHealth reports liveness plus downstream component checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	check := func(name string, c HealthChecker) {
		if c == nil {
			return
		}
		if err := c.HealthCheck(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}
	check("mqtt", s.mqtt)
	check("database", s.db)

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

// handleStatus reports the bridge's operational snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := statusDocument{
		Version:      s.version,
		SessionState: s.bridge.SessionState(),
		ControllerID: s.bridge.ControllerID(),
		Sites:        s.bridge.SiteCount(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if last := s.bridge.LastCycle(); !last.IsZero() {
		doc.LastCycle = last.UTC().Format(time.RFC3339)
	}
	if leaves, err := s.bridge.LeafCount(r.Context()); err == nil {
		doc.Leaves = leaves
	} else {
		s.logger.Warn("failed to count leaves for status", "error", err)
	}

	writeJSON(w, http.StatusOK, doc)
}

// pumpUpdates forwards namespace leaf updates to the WebSocket hub.
func (s *Server) pumpUpdates(ctx context.Context) {
	updates, cancel := s.updates.Watch()
	defer cancel()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.hub.Broadcast(update)
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
