package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleServerStatus returns the supervisor state snapshot.
func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

// handleServerLog returns retained indiserver output lines, oldest
// first.
func (s *Server) handleServerLog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.ServerLog())
}

// handleServerStart launches indiserver for the named profile.
func (s *Server) handleServerStart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")

	prof, err := s.profiles.Get(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.supervisor.Start(r.Context(), prof); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

// handleServerStop shuts the running server down.
func (s *Server) handleServerStop(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.Stop(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

// handleRunningDrivers returns the running driver set.
func (s *Server) handleRunningDrivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Running())
}

// handleDriverStart adds a driver to the running server.
func (s *Server) handleDriverStart(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.StartDriver(r.Context(), chi.URLParam(r, "label")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.Running())
}

// handleDriverStop removes a driver from the running server.
func (s *Server) handleDriverStop(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.StopDriver(r.Context(), chi.URLParam(r, "label")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.Running())
}

// handleDriverRestart restarts a single driver without touching the
// rest of the session.
func (s *Server) handleDriverRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.RestartDriver(r.Context(), chi.URLParam(r, "label")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.Running())
}
