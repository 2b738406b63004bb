package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/observon/indi-core/internal/catalog"
	"github.com/observon/indi-core/internal/profile"
)

// handleListDrivers returns every known driver, catalog and custom,
// sorted by label.
func (s *Server) handleListDrivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Drivers())
}

// handleDriverFamilies returns driver labels grouped by device family.
func (s *Server) handleDriverFamilies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Families())
}

// customDriverRequest is the request body for POST /drivers/custom.
type customDriverRequest struct {
	Label   string `json:"label"`
	Name    string `json:"name"`
	Binary  string `json:"binary"`
	Family  string `json:"family"`
	Version string `json:"version"`
}

// handleAddCustomDriver registers a user-defined driver. The record is
// persisted and overlaid on the catalog immediately.
func (s *Server) handleAddCustomDriver(w http.ResponseWriter, r *http.Request) {
	var req customDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := &profile.CustomDriver{
		Label:   req.Label,
		Name:    req.Name,
		Binary:  req.Binary,
		Family:  req.Family,
		Version: req.Version,
	}
	if err := s.profiles.AddCustomDriver(r.Context(), d); err != nil {
		writeDomainError(w, err)
		return
	}

	s.catalog.AddCustom(catalog.Driver{
		Label:   d.Label,
		Name:    d.Name,
		Binary:  d.Binary,
		Family:  d.Family,
		Version: d.Version,
	})

	writeJSON(w, http.StatusCreated, d)
}

// handleDeleteCustomDriver removes a user-defined driver.
func (s *Server) handleDeleteCustomDriver(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if err := s.profiles.DeleteCustomDriver(r.Context(), label); err != nil {
		writeDomainError(w, err)
		return
	}
	s.catalog.RemoveCustom(label)
	w.WriteHeader(http.StatusNoContent)
}
