// Package namespace implements the hierarchical key/value store the Omada
// bridge projects controller state into.
//
// The namespace is a tree of objects addressed by dotted paths
// (e.g. "site1.ssids.SS1.hidden"). Containers (devices and channels) are
// created lazily the first time a leaf beneath them is written; re-creation
// is a no-op. Leaf values are persisted in SQLite and mirrored to the MQTT
// bus as retained state topics so the Core always sees the last-known value.
//
// # Object Model
//
//   - device:  a top-level polled entity (an Omada site)
//   - channel: an intermediate container (a resource group or record)
//   - state:   a leaf holding one scalar value
//
// # Staleness
//
// Leaves are overwritten in place on every poll cycle but never deleted
// when the corresponding field disappears from a later controller response.
// Consumers get a stable set of paths at the cost of possibly stale values;
// pruning is deliberately not implemented.
//
// # Write Intents
//
// External writes arrive on set topics. The store checks writability and
// forwards writes on writable leaves to the registered WriteHandler; writes
// elsewhere are accepted but inert.
//
// Thread Safety: all exported methods are safe for concurrent use.
package namespace
