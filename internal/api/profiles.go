package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/observon/indi-core/internal/profile"
)

// profileRequest is the request body for profile create and update.
type profileRequest struct {
	Name        string   `json:"name"`
	Port        int      `json:"port"`
	Autostart   bool     `json:"autostart"`
	Autoconnect bool     `json:"autoconnect"`
	Drivers     []string `json:"drivers"`
	Remotes     []string `json:"remotes"`
}

func (req *profileRequest) toProfile() *profile.Profile {
	return &profile.Profile{
		Name:        req.Name,
		Port:        req.Port,
		Autostart:   req.Autostart,
		Autoconnect: req.Autoconnect,
		Drivers:     req.Drivers,
		Remotes:     req.Remotes,
	}
}

// handleListProfiles returns all stored profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleCreateProfile stores a new profile.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := req.toProfile()
	if err := s.profiles.Create(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleGetProfile returns one profile by name.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProfile replaces a profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	name := chi.URLParam(r, "name")
	p := req.toProfile()
	if p.Name == "" {
		p.Name = name
	}
	if err := s.profiles.Update(r.Context(), name, p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProfile removes a profile.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProfileDrivers returns the driver labels and remote specs of a
// profile.
func (s *Server) handleProfileDrivers(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drivers": p.Drivers,
		"remotes": p.Remotes,
	})
}

// handleAddProfileDriver appends a driver label or remote spec to a
// profile.
func (s *Server) handleAddProfileDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label  string `json:"label"`
		Remote string `json:"remote"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Label == "" && req.Remote == "" {
		writeBadRequest(w, "label or remote is required")
		return
	}

	name := chi.URLParam(r, "name")
	p, err := s.profiles.Get(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Label != "" {
		p.Drivers = append(p.Drivers, req.Label)
	}
	if req.Remote != "" {
		p.Remotes = append(p.Remotes, req.Remote)
	}

	if err := s.profiles.Update(r.Context(), name, p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
