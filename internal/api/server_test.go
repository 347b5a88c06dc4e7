package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/logging"
)

// mockBridge implements BridgeStatus with fixed values.
type mockBridge struct {
	state     string
	cid       string
	sites     int
	lastCycle time.Time
	leaves    int
	leavesErr error
}

func (m *mockBridge) SessionState() string { return m.state }
func (m *mockBridge) ControllerID() string { return m.cid }
func (m *mockBridge) SiteCount() int       { return m.sites }
func (m *mockBridge) LastCycle() time.Time { return m.lastCycle }
func (m *mockBridge) LeafCount(context.Context) (int, error) {
	return m.leaves, m.leavesErr
}

// mockChecker implements HealthChecker.
type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(context.Context) error { return m.err }

func newTestServer(t *testing.T, bridge *mockBridge, mqtt, db HealthChecker) *Server {
	t.Helper()

	server, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:  logging.Default(),
		Bridge:  bridge,
		MQTT:    mqtt,
		DB:      db,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return server
}

func TestNewRequiresBridge(t *testing.T) {
	_, err := New(Deps{Logger: logging.Default()})
	if err == nil {
		t.Fatal("expected error without bridge status source")
	}
}

func TestHandleStatus(t *testing.T) {
	bridge := &mockBridge{
		state:     "authenticated",
		cid:       "abc123",
		sites:     2,
		lastCycle: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		leaves:    137,
	}
	server := newTestServer(t, bridge, nil, nil)

	rec := httptest.NewRecorder()
	server.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var doc statusDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if doc.SessionState != "authenticated" {
		t.Errorf("unexpected session state %q", doc.SessionState)
	}
	if doc.ControllerID != "abc123" {
		t.Errorf("unexpected controller id %q", doc.ControllerID)
	}
	if doc.Sites != 2 {
		t.Errorf("unexpected site count %d", doc.Sites)
	}
	if doc.Leaves != 137 {
		t.Errorf("unexpected leaf count %d", doc.Leaves)
	}
	if doc.LastCycle != "2026-01-15T12:00:00Z" {
		t.Errorf("unexpected last cycle %q", doc.LastCycle)
	}
}

func TestHandleStatusOmitsZeroCycle(t *testing.T) {
	server := newTestServer(t, &mockBridge{state: "unauthenticated"}, nil, nil)

	rec := httptest.NewRecorder()
	server.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var doc statusDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if doc.LastCycle != "" {
		t.Errorf("expected empty last cycle before first poll, got %q", doc.LastCycle)
	}
}

func TestHandleHealthHealthy(t *testing.T) {
	server := newTestServer(t, &mockBridge{}, &mockChecker{}, &mockChecker{})

	rec := httptest.NewRecorder()
	server.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %q", body.Status)
	}
	if body.Checks["mqtt"] != "ok" || body.Checks["database"] != "ok" {
		t.Errorf("unexpected checks %v", body.Checks)
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	server := newTestServer(t, &mockBridge{}, &mockChecker{err: errors.New("broker unreachable")}, &mockChecker{})

	rec := httptest.NewRecorder()
	server.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
