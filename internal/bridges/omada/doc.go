// Package omada implements the TP-Link Omada controller bridge.
//
// The bridge maintains an authenticated session against an Omada network
// controller, polls a fixed catalog of REST resources on a schedule, and
// projects the returned JSON documents into the hierarchical namespace
// (see internal/namespace). A subset of leaves (SSID settings) is
// writable: external writes are resolved against a cache of the last
// polled records and sent back to the controller as full-record patches.
//
// # Architecture
//
//   - Client:     HTTP transport with envelope decoding and error
//     classification (transport / auth / application).
//   - Session:    login state machine with scheduled and debounced
//     reactive token refresh.
//   - Scheduler:  keyed cancellable delayed tasks (debounce, reconcile).
//   - Catalog:    the static, ordered list of resources polled per site.
//   - Mapper:     pure JSON-to-namespace projection.
//   - Cache:      last-polled records per (site, resource), consulted by
//     the write-back dispatcher.
//   - Poller:     the sequential poll cycle.
//   - Dispatcher: write-back of leaf mutations to the controller.
//
// # Failure Policy
//
// Every remote call failure is caught and logged at the call site. A
// failing call never aborts a poll cycle; the next cycle retries
// naturally. Authentication failures (HTTP 401) additionally request a
// debounced session refresh, collapsing concurrent 401s into a single
// pending refresh.
package omada
