package api

import (
	"net/http"
	"os"
)

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleSystemInfo returns host and session information for UIs.
func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	hostname, _ := os.Hostname() //nolint:errcheck // empty hostname is acceptable

	writeJSON(w, http.StatusOK, map[string]any{
		"hostname":       hostname,
		"version":        s.version,
		"server_state":   s.supervisor.State(),
		"active_profile": s.supervisor.ActiveProfile(),
		"indi_port":      s.supervisor.Port(),
		"connected":      s.bridge.Connected(),
		"devices":        s.bridge.Devices(),
		"ws_clients":     s.hub.ClientCount(),
	})
}
