package omada

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-omada/internal/namespace"
)

// mockStore is an in-memory NamespaceStore recording all writes.
type mockStore struct {
	mu      sync.Mutex
	objects map[string]namespace.Object
	leaves  map[string]namespace.Leaf
}

func newMockStore() *mockStore {
	return &mockStore{
		objects: make(map[string]namespace.Object),
		leaves:  make(map[string]namespace.Leaf),
	}
}

func (m *mockStore) EnsureObject(_ context.Context, obj namespace.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[obj.Path]; !ok {
		m.objects[obj.Path] = obj
	}
	return nil
}

func (m *mockStore) SetLeaf(_ context.Context, leaf namespace.Leaf) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[leaf.Path] = leaf
	return nil
}

func (m *mockStore) leaf(path string) (namespace.Leaf, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaf, ok := m.leaves[path]
	return leaf, ok
}

// newOmadaStub serves a one-site controller: site S1, wireless network
// W1, SSID SS1. Unlisted resource endpoints return empty lists.
func newOmadaStub(t *testing.T) *httptest.Server {
	t.Helper()

	listBody := func(records string) map[string]any {
		var data json.RawMessage = json.RawMessage(records)
		return map[string]any{
			"errorCode": 0,
			"result":    map[string]any{"totalRows": 1, "currentPage": 1, "data": data},
		}
	}

	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		switch {
		case r.URL.Path == "/":
			http.Redirect(w, r, "/abc123/login", http.StatusFound)
			return
		case r.URL.Path == "/abc123/api/v2/login":
			body = map[string]any{"errorCode": 0, "result": map[string]string{"token": "tok"}}
		case r.URL.Path == "/abc123/api/v2/sites":
			body = listBody(`[{"id":"S1","name":"Home"}]`)
		case r.URL.Path == "/abc123/api/v2/sites/S1/setting/wlans":
			body = listBody(`[{"id":"W1","name":"Main","site":"S1"}]`)
		case r.URL.Path == "/abc123/api/v2/sites/S1/setting/wlans/W1/ssids":
			body = listBody(`[{"id":"SS1","wlanId":"W1","ssidName":"Guest","hidden":false}]`)
		case r.URL.Path == "/abc123/api/v2/sites/S1/dashboard/overviewDiagram":
			body = map[string]any{"errorCode": 0, "result": map[string]any{"totalClients": 3}}
		case strings.HasPrefix(r.URL.Path, "/abc123/api/v2/sites/S1/"):
			body = listBody(`[]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(body) //nolint:errcheck
	}))
}

type pollerFixture struct {
	poller    *Poller
	session   *Session
	store     *mockStore
	cache     *ResourceCache
	scheduler *Scheduler
}

func newPollerFixture(t *testing.T, server *httptest.Server) *pollerFixture {
	t.Helper()

	client := newTestClient(t, server)
	scheduler := NewScheduler()
	t.Cleanup(scheduler.Stop)

	session, err := NewSession(SessionOptions{
		Client:    client,
		Username:  "admin",
		Password:  "secret",
		Scheduler: scheduler,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(session.Stop)

	store := newMockStore()
	cache := NewResourceCache()

	poller, err := NewPoller(PollerOptions{
		Client:         client,
		Session:        session,
		Store:          store,
		Cache:          cache,
		Scheduler:      scheduler,
		ReconcileDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}
	t.Cleanup(poller.Stop)

	return &pollerFixture{poller: poller, session: session, store: store, cache: cache, scheduler: scheduler}
}

func TestPollerEndToEnd(t *testing.T) {
	server := newOmadaStub(t)
	defer server.Close()

	f := newPollerFixture(t, server)
	ctx := context.Background()

	if err := f.session.Login(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := f.poller.DiscoverSites(ctx); err != nil {
		t.Fatalf("DiscoverSites failed: %v", err)
	}

	if f.poller.SiteCount() != 1 {
		t.Fatalf("expected 1 site, got %d", f.poller.SiteCount())
	}

	// Site seeding: device object, remote refresh button, metadata.
	if leaf, ok := f.store.leaf("S1.remote.refresh"); !ok {
		t.Error("missing remote refresh button")
	} else if !leaf.Writable {
		t.Error("remote refresh button must be writable")
	}
	if _, ok := f.store.leaf("S1.general.name"); !ok {
		t.Error("missing site metadata leaf S1.general.name")
	}

	f.poller.RunCycle(ctx)

	// Wlan leaves under content-addressed paths.
	if leaf, ok := f.store.leaf("S1.wlans.W1.name"); !ok {
		t.Error("missing leaf S1.wlans.W1.name")
	} else if leaf.Value != "Main" {
		t.Errorf("unexpected wlan name %v", leaf.Value)
	}

	// Dependent SSID sub-poll mapped with writable leaves.
	leaf, ok := f.store.leaf("S1.ssids.SS1.ssidName")
	if !ok {
		t.Fatal("missing leaf S1.ssids.SS1.ssidName")
	}
	if leaf.Value != "Guest" {
		t.Errorf("expected Guest, got %v", leaf.Value)
	}
	hidden, ok := f.store.leaf("S1.ssids.SS1.hidden")
	if !ok {
		t.Fatal("missing leaf S1.ssids.SS1.hidden")
	}
	if hidden.Value != false {
		t.Errorf("expected hidden=false, got %v", hidden.Value)
	}
	if !hidden.Writable {
		t.Error("SSID leaves must be writable")
	}

	// Non-list payloads map directly.
	if leaf, ok := f.store.leaf("S1.dashboard.totalClients"); !ok {
		t.Error("missing dashboard leaf")
	} else if leaf.Value != 3.0 {
		t.Errorf("unexpected dashboard value %v", leaf.Value)
	}

	// Raw document leaves sit beside the mapped trees.
	if _, ok := f.store.leaf("S1.wlans.json"); !ok {
		t.Error("missing raw JSON leaf for wlans")
	}

	// Cache populated for write-back resolution.
	if _, ok := f.cache.Get("S1", kindSSIDs, "SS1"); !ok {
		t.Error("SSID record missing from cache")
	}
	if _, ok := f.cache.Get("S1", kindWLANs, "W1"); !ok {
		t.Error("wlan record missing from cache")
	}

	if f.poller.LastCycle().IsZero() {
		t.Error("LastCycle not recorded")
	}
}

func TestPollerCycleContinuesPast401(t *testing.T) {
	var mu sync.Mutex
	failClients := true

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := failClients
		mu.Unlock()

		switch {
		case r.URL.Path == "/":
			http.Redirect(w, r, "/abc123/login", http.StatusFound)
			return
		case r.URL.Path == "/abc123/api/v2/login":
			json.NewEncoder(w).Encode(map[string]any{"errorCode": 0, "result": map[string]string{"token": "tok"}}) //nolint:errcheck
			return
		case r.URL.Path == "/abc123/api/v2/sites":
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"errorCode": 0,
				"result":    map[string]any{"data": json.RawMessage(`[{"id":"S1","name":"Home"}]`)},
			})
			return
		case r.URL.Path == "/abc123/api/v2/sites/S1/clients" && fail:
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"errorCode": 0,
			"result":    map[string]any{"data": json.RawMessage(`[]`)},
		})
	}))
	defer server.Close()

	f := newPollerFixture(t, server)
	ctx := context.Background()

	if err := f.session.Login(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := f.poller.DiscoverSites(ctx); err != nil {
		t.Fatalf("DiscoverSites failed: %v", err)
	}

	f.poller.RunCycle(ctx)

	// The 401 requested a refresh but did not abort the cycle.
	if f.session.State() != StateRefreshPending {
		t.Errorf("expected refresh_pending after 401, got %s", f.session.State())
	}
	if got := f.scheduler.Pending(); got != 1 {
		t.Errorf("expected exactly 1 pending refresh, got %d", got)
	}
	if _, ok := f.store.leaf("S1.devices.json"); !ok {
		t.Error("endpoints after the failing one were not polled")
	}
}

func TestPollerSkipsCycleWithoutSession(t *testing.T) {
	server := newOmadaStub(t)
	defer server.Close()

	f := newPollerFixture(t, server)

	f.poller.RunCycle(context.Background())

	if !f.poller.LastCycle().IsZero() {
		t.Error("cycle must be skipped without a session")
	}
}

func TestPollerHandleRemoteCommand(t *testing.T) {
	server := newOmadaStub(t)
	defer server.Close()

	f := newPollerFixture(t, server)

	if handled := f.poller.HandleRemoteCommand("S1.ssids.SS1.hidden", true); handled {
		t.Error("non-remote path must not be handled")
	}

	if handled := f.poller.HandleRemoteCommand("S1.remote.refresh", true); !handled {
		t.Error("remote refresh path must be handled")
	}
	if f.scheduler.Pending() != 1 {
		t.Errorf("expected scheduled cycle, pending=%d", f.scheduler.Pending())
	}

	// A false write is handled but schedules nothing new.
	f.scheduler.Cancel(cycleKey)
	if handled := f.poller.HandleRemoteCommand("S1.remote.refresh", false); !handled {
		t.Error("remote refresh path must be handled even for false")
	}
	if f.scheduler.Pending() != 0 {
		t.Error("false write must not schedule a cycle")
	}
}
