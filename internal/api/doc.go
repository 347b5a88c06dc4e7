// Package api provides the HTTP status server and WebSocket stream for
// the Omada bridge.
//
// It exposes a liveness endpoint, a status document (session state,
// controller id, site count, last poll cycle, leaf count), and a
// WebSocket endpoint streaming namespace leaf updates as they happen.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use.
package api
