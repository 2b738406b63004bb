// Package api provides the HTTP REST API and WebSocket server for INDI
// Control Core.
//
// It exposes the profile store, driver catalog, server supervisor, and
// property sync bridge to remote clients under /api/v1, and pushes
// property changes, device messages, and server state transitions to
// WebSocket subscribers.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use.
package api
