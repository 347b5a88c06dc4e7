package omada

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-omada/internal/namespace"
)

// Poller constants.
const (
	// cycleKey identifies the scheduled on-demand poll cycle task.
	cycleKey = "poll-cycle"

	// remoteRefreshSuffix is the per-site leaf suffix that triggers an
	// on-demand poll cycle when written.
	remoteRefreshSuffix = ".remote.refresh"
)

// Resource kinds in the dependent-resource cache.
const (
	kindWLANs = "wlans"
	kindSSIDs = "ssids"
)

// NamespaceStore is the interface the poller needs from the namespace.
// Satisfied by *namespace.Store.
type NamespaceStore interface {
	// EnsureObject creates a container or state object if absent.
	EnsureObject(ctx context.Context, obj namespace.Object) error

	// SetLeaf writes one leaf value.
	SetLeaf(ctx context.Context, leaf namespace.Leaf) error
}

// Poller runs the fetch cycle: it iterates the endpoint catalog in
// declared order, fetches each resource per discovered site, and hands
// results to the mapper. Execution is strictly sequential; the target
// controller is an embedded-class appliance and parallel fan-out would
// risk overwhelming it.
//
// Call failures never abort a cycle. Authentication failures request a
// debounced session refresh and the cycle moves on; the failed calls
// retry naturally on the next cycle with the refreshed token.
type Poller struct {
	client    *Client
	session   *Session
	store     NamespaceStore
	cache     *ResourceCache
	scheduler *Scheduler
	catalog   []Endpoint

	interval       time.Duration
	reconcileDelay time.Duration

	sites     map[string]Site
	siteOrder []string
	lastCycle time.Time
	mu        sync.RWMutex

	// cycleMu serializes poll cycles: a scheduled on-demand cycle must
	// not interleave namespace writes with the ticker cycle.
	cycleMu sync.Mutex

	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once

	logger Logger
}

// PollerOptions holds configuration for creating a poller.
type PollerOptions struct {
	// Client is the controller HTTP client.
	Client *Client

	// Session supplies the token and receives 401 notifications.
	Session *Session

	// Store receives mapped namespace objects and leaves.
	Store NamespaceStore

	// Cache receives polled wlan and SSID records for write-back.
	Cache *ResourceCache

	// Scheduler runs delayed on-demand cycles and reconcile re-polls.
	Scheduler *Scheduler

	// Catalog is the ordered endpoint list (DefaultCatalog if nil).
	Catalog []Endpoint

	// Interval is the cycle period (default 5m).
	Interval time.Duration

	// ReconcileDelay is the delay before a write-back reconcile
	// re-poll fires (default 5s).
	ReconcileDelay time.Duration

	// Logger is optional structured logging.
	Logger Logger
}

// NewPoller creates a poller. Call DiscoverSites once after login, then
// Run to start the cycle loop.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("namespace store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("resource cache is required")
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	interval := opts.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	reconcileDelay := opts.ReconcileDelay
	if reconcileDelay == 0 {
		reconcileDelay = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		client:         opts.Client,
		session:        opts.Session,
		store:          opts.Store,
		cache:          opts.Cache,
		scheduler:      opts.Scheduler,
		catalog:        catalog,
		interval:       interval,
		reconcileDelay: reconcileDelay,
		sites:          make(map[string]Site),
		ctx:            ctx,
		ctxCancel:      cancel,
		done:           make(chan struct{}),
		logger:         opts.Logger,
	}, nil
}

// DiscoverSites fetches the controller's site list and seeds the
// namespace: one device object per site, a remote-control channel with
// a refresh button, and the site metadata under "{site}.general".
//
// Discovery runs once; sites removed upstream later are not pruned.
func (p *Poller) DiscoverSites(ctx context.Context) error {
	result, err := p.get(ctx, "sites?currentPageSize=100&currentPage=1")
	if err != nil {
		p.handleCallError("site discovery", err)
		return err
	}

	var list listResult
	if err := json.Unmarshal(result, &list); err != nil {
		return fmt.Errorf("decoding site list: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(list.Data, &records); err != nil {
		return fmt.Errorf("decoding site records: %w", err)
	}

	p.logInfo("discovered sites", "count", len(records))

	for _, raw := range records {
		var meta struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil || meta.ID == "" {
			p.logWarn("skipping site record without id")
			continue
		}

		site := Site{ID: sanitizeSegment(meta.ID), Name: meta.Name, Raw: raw}

		p.mu.Lock()
		if _, known := p.sites[site.ID]; !known {
			p.siteOrder = append(p.siteOrder, site.ID)
			sort.Strings(p.siteOrder)
		}
		p.sites[site.ID] = site
		p.mu.Unlock()

		p.seedSiteObjects(ctx, site)
	}

	return nil
}

// seedSiteObjects creates the static per-site namespace objects.
func (p *Poller) seedSiteObjects(ctx context.Context, site Site) {
	p.ensure(ctx, namespace.Object{
		Path: site.ID,
		Type: namespace.TypeDevice,
		Name: site.Name,
	})
	p.ensure(ctx, namespace.Object{
		Path: site.ID + ".remote",
		Type: namespace.TypeChannel,
		Name: "Remote Controls",
	})
	p.setLeaf(ctx, namespace.Leaf{
		Path:     site.ID + ".remote.refresh",
		Value:    false,
		Type:     namespace.ValueBoolean,
		Role:     "button",
		Name:     "True = Refresh",
		Writable: true,
	})

	containers, leaves, err := Parse(site.ID+".general", site.Raw, MapOptions{ForceIndex: true})
	if err != nil {
		p.logWarn("failed to map site metadata", "site", site.ID, "error", err)
		return
	}
	p.apply(ctx, containers, leaves)
}

// Run executes one eager cycle, then loops on the poll interval until
// Stop or context cancellation.
func (p *Poller) Run(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.RunCycle(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.RunCycle(ctx)
			case <-ctx.Done():
				return
			case <-p.done:
				return
			}
		}
	}()
}

// Stop cancels pending scheduled cycles and halts the loop.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.ctxCancel()
		p.scheduler.Cancel(cycleKey)
		p.wg.Wait()
	})
}

// RunCycle polls every catalog endpoint for every site, in catalog
// order, sequentially. Within one cycle a site's results are written to
// the namespace in catalog order.
func (p *Poller) RunCycle(ctx context.Context) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if p.session.Token() == "" {
		p.logWarn("skipping poll cycle, no active session")
		return
	}

	p.mu.RLock()
	order := make([]string, len(p.siteOrder))
	copy(order, p.siteOrder)
	p.mu.RUnlock()

	start := time.Now()

	for _, endpoint := range p.catalog {
		for _, siteID := range order {
			site, ok := p.site(siteID)
			if !ok {
				continue
			}
			p.pollEndpoint(ctx, site, endpoint)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}

	p.mu.Lock()
	p.lastCycle = time.Now()
	p.mu.Unlock()

	p.logInfo("poll cycle complete", "sites", len(order), "duration", time.Since(start).Round(time.Millisecond))
}

// pollEndpoint fetches one resource for one site and projects it into
// the namespace. Failures are logged and swallowed.
func (p *Poller) pollEndpoint(ctx context.Context, site Site, endpoint Endpoint) {
	path := strings.ReplaceAll(endpoint.Path, "{site}", site.ID)
	result, err := p.get(ctx, path)
	if err != nil {
		p.handleCallError(site.ID+"."+endpoint.Segment, err)
		return
	}

	payload := extractData(result)
	basePath := site.ID + "." + endpoint.Segment

	containers, leaves, err := Parse(basePath, payload, MapOptions{
		KeyField:   endpoint.KeyField,
		LabelField: endpoint.LabelField,
		ForceIndex: endpoint.ForceIndex,
	})
	if err != nil {
		p.logWarn("failed to map payload", "path", basePath, "error", err)
		return
	}
	p.apply(ctx, containers, leaves)
	p.setRawLeaf(ctx, basePath, payload)

	if endpoint.Segment == kindWLANs {
		p.pollDependentSSIDs(ctx, site, payload)
	}
}

// pollDependentSSIDs issues one SSID sub-poll per wireless network in
// the wlans payload, mapping and caching each result. The SSID cache
// group is rebuilt in full across all networks of the site.
func (p *Poller) pollDependentSSIDs(ctx context.Context, site Site, wlansPayload json.RawMessage) {
	wlans := decodeRecords(wlansPayload)
	p.cache.Store(site.ID, kindWLANs, "id", wlans)

	var all []map[string]any
	for _, wlan := range wlans {
		wlanID := scalarString(wlan["id"])
		if wlanID == "" {
			continue
		}
		records, err := p.pollSSIDs(ctx, site, wlanID)
		if err != nil {
			p.handleCallError(site.ID+".ssids["+wlanID+"]", err)
			continue
		}
		all = append(all, records...)
	}
	p.cache.Store(site.ID, kindSSIDs, "id", all)
}

// pollSSIDs fetches and maps one wireless network's SSID list,
// returning the decoded records for caching.
func (p *Poller) pollSSIDs(ctx context.Context, site Site, wlanID string) ([]map[string]any, error) {
	path := strings.ReplaceAll(ssidEndpoint.Path, "{site}", site.ID)
	path = strings.ReplaceAll(path, "{wlan}", wlanID)

	result, err := p.get(ctx, path)
	if err != nil {
		return nil, err
	}

	payload := extractData(result)
	basePath := site.ID + "." + ssidEndpoint.Segment

	containers, leaves, err := Parse(basePath, payload, MapOptions{
		KeyField:   ssidEndpoint.KeyField,
		LabelField: ssidEndpoint.LabelField,
		Writable:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("mapping SSID payload: %w", err)
	}
	p.apply(ctx, containers, leaves)

	return decodeRecords(payload), nil
}

// ScheduleCycle arranges an on-demand poll cycle after the reconcile
// delay, replacing any already pending one. Used by the per-site
// remote refresh button.
func (p *Poller) ScheduleCycle() {
	p.scheduler.Schedule(cycleKey, p.reconcileDelay, func() {
		p.RunCycle(p.ctx)
	})
}

// ScheduleSSIDReconcile arranges a re-poll of one wireless network's
// SSID list after the reconcile delay, upserting the results into the
// cache. Called by the write-back dispatcher after a successful patch
// so the namespace converges on the server's authoritative record.
func (p *Poller) ScheduleSSIDReconcile(siteID, wlanID string) {
	key := "reconcile:" + siteID + ":" + wlanID
	p.scheduler.Schedule(key, p.reconcileDelay, func() {
		site, ok := p.site(siteID)
		if !ok {
			return
		}
		records, err := p.pollSSIDs(p.ctx, site, wlanID)
		if err != nil {
			p.handleCallError(siteID+".ssids["+wlanID+"] reconcile", err)
			return
		}
		p.cache.Update(siteID, kindSSIDs, "id", records)
	})
}

// HandleRemoteCommand reacts to writes on per-site remote-control
// leaves. A truthy write to "{site}.remote.refresh" schedules a poll
// cycle. Returns true if the path was a remote-control leaf.
func (p *Poller) HandleRemoteCommand(path string, value any) bool {
	if !strings.HasSuffix(path, remoteRefreshSuffix) {
		return false
	}
	if truthy(value) {
		p.logInfo("manual refresh requested", "path", path)
		p.ScheduleCycle()
	}
	return true
}

// LastCycle returns when the most recent poll cycle completed.
func (p *Poller) LastCycle() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCycle
}

// SiteCount returns the number of discovered sites.
func (p *Poller) SiteCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sites)
}

func (p *Poller) site(id string) (Site, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	site, ok := p.sites[id]
	return site, ok
}

// get issues an authenticated GET against a path relative to the
// controller's v2 API root.
func (p *Poller) get(ctx context.Context, path string) (json.RawMessage, error) {
	token := p.session.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return p.client.Get(ctx, token, p.session.ControllerID()+"/api/v2/"+path)
}

// handleCallError applies the failure policy: auth failures request a
// debounced refresh, everything is logged, nothing propagates.
func (p *Poller) handleCallError(what string, err error) {
	switch {
	case errors.Is(err, ErrAuth):
		p.logInfo("received 401, requesting session refresh", "call", what)
		p.session.RequestRefresh()
	case errors.Is(err, ErrApplication):
		p.logWarn("controller rejected call", "call", what, "error", err)
	default:
		p.logError("call failed", what, err)
	}
}

// apply writes mapped containers and leaves to the namespace store.
func (p *Poller) apply(ctx context.Context, containers []namespace.Object, leaves []namespace.Leaf) {
	for _, container := range containers {
		p.ensure(ctx, container)
	}
	for _, leaf := range leaves {
		p.setLeaf(ctx, leaf)
	}
}

// setRawLeaf stores the full payload as a JSON string leaf beside the
// mapped tree, for consumers that want the unprojected document.
func (p *Poller) setRawLeaf(ctx context.Context, basePath string, payload json.RawMessage) {
	p.setLeaf(ctx, namespace.Leaf{
		Path:  basePath + ".json",
		Value: string(payload),
		Type:  namespace.ValueString,
		Role:  "json",
		Name:  "Raw JSON",
	})
}

func (p *Poller) ensure(ctx context.Context, obj namespace.Object) {
	if err := p.store.EnsureObject(ctx, obj); err != nil {
		p.logWarn("failed to ensure object", "path", obj.Path, "error", err)
	}
}

func (p *Poller) setLeaf(ctx context.Context, leaf namespace.Leaf) {
	if err := p.store.SetLeaf(ctx, leaf); err != nil {
		p.logWarn("failed to set leaf", "path", leaf.Path, "error", err)
	}
}

// extractData unwraps the pagination wrapper list endpoints use,
// returning the inner data array. Non-list payloads pass through.
func extractData(result json.RawMessage) json.RawMessage {
	var list listResult
	if err := json.Unmarshal(result, &list); err != nil {
		return result
	}
	if len(list.Data) > 0 && list.Data[0] == '[' {
		return list.Data
	}
	return result
}

// decodeRecords decodes a JSON array of objects, returning nil on any
// other shape.
func decodeRecords(payload json.RawMessage) []map[string]any {
	var records []map[string]any
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil
	}
	return records
}

// truthy interprets a decoded write payload as a boolean trigger.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

func (p *Poller) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Poller) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Poller) logError(msg, what string, err error) {
	if p.logger != nil {
		p.logger.Error(msg, "call", what, "error", err)
	}
}
