package omada

import "sync"

// ResourceCache holds the last-polled records of dependent resources,
// keyed by (siteID, kind, recordID). The poller rebuilds each (site,
// kind) group wholesale on every poll; the write-back dispatcher reads
// it to locate the full record a leaf write targets.
//
// Thread Safety: safe for concurrent use. The poller writes, the
// dispatcher reads and replaces single records after a successful
// write-back.
type ResourceCache struct {
	mu      sync.RWMutex
	records map[string]map[string]map[string]map[string]any
}

// NewResourceCache creates an empty cache.
func NewResourceCache() *ResourceCache {
	return &ResourceCache{
		records: make(map[string]map[string]map[string]map[string]any),
	}
}

// Store replaces all cached records for (siteID, kind). Records lacking
// a usable key field value are skipped.
func (c *ResourceCache) Store(siteID, kind, keyField string, records []map[string]any) {
	group := make(map[string]map[string]any, len(records))
	for _, record := range records {
		id := scalarString(record[keyField])
		if id == "" {
			continue
		}
		group[id] = record
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[siteID]; !ok {
		c.records[siteID] = make(map[string]map[string]map[string]any)
	}
	c.records[siteID][kind] = group
}

// Update upserts records into an existing (siteID, kind) group without
// clearing it. Used by reconcile re-polls that refresh one wireless
// network's records while other networks' records stay cached.
func (c *ResourceCache) Update(siteID, kind, keyField string, records []map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[siteID]; !ok {
		c.records[siteID] = make(map[string]map[string]map[string]any)
	}
	if _, ok := c.records[siteID][kind]; !ok {
		c.records[siteID][kind] = make(map[string]map[string]any)
	}
	for _, record := range records {
		id := scalarString(record[keyField])
		if id == "" {
			continue
		}
		c.records[siteID][kind][id] = record
	}
}

// Get returns a copy of one cached record. The copy is shallow: callers
// mutate only top-level scalar fields.
func (c *ResourceCache) Get(siteID, kind, recordID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.records[siteID][kind][recordID]
	if !ok {
		return nil, false
	}

	clone := make(map[string]any, len(record))
	for k, v := range record {
		clone[k] = v
	}
	return clone, true
}

// Replace updates a single cached record in place, used after a
// successful write-back so subsequent writes see the mutated record
// before the reconcile poll lands.
func (c *ResourceCache) Replace(siteID, kind, recordID string, record map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[siteID][kind]; !ok {
		return
	}
	c.records[siteID][kind][recordID] = record
}

// Count returns the number of cached records for (siteID, kind).
func (c *ResourceCache) Count(siteID, kind string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records[siteID][kind])
}
