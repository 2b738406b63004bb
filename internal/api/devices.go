package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/observon/indi-core/internal/indi"
)

// handleListDevices returns the defined device names.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Devices())
}

// handleDeviceStructure returns the full property tree of a device,
// shaped as group -> property name -> property for UI tab rendering.
func (s *Server) handleDeviceStructure(w http.ResponseWriter, r *http.Request) {
	props, err := s.bridge.Structure(chi.URLParam(r, "device"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tree := make(map[string]map[string]*indi.Property)
	for _, p := range props {
		group := p.Group
		if group == "" {
			group = "Main Control"
		}
		if tree[group] == nil {
			tree[group] = make(map[string]*indi.Property)
		}
		tree[group][p.Name] = p
	}
	writeJSON(w, http.StatusOK, tree)
}

// handleDeviceDirty answers an incremental poll: properties changed or
// deleted since the caller's cursor. An absent or empty since parameter
// returns the full tree.
func (s *Server) handleDeviceDirty(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeBadRequest(w, "since must be RFC3339Nano")
			return
		}
	}

	res, err := s.bridge.Dirty(chi.URLParam(r, "device"), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// setPropertyRequest is the request body for a single property write.
type setPropertyRequest struct {
	Elements map[string]string `json:"elements"`
}

// handleSetProperty validates and transmits one property write. The
// response reflects transmission, not device acknowledgment; clients
// observe the effect through the event stream.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	var req setPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	device := chi.URLParam(r, "device")
	property := chi.URLParam(r, "property")
	if err := s.bridge.SetProperty(device, property, req.Elements); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"device":   device,
		"property": property,
		"sent":     true,
	})
}

// batchRequest is the request body for POST /devices/{device}/batch.
type batchRequest struct {
	Names []string `json:"names"`
}

// handleDeviceBatch fetches exactly the named properties of a device.
// Unknown names do not fail the call; they come back in an unknown
// list and the HTTP status is 207 when the outcome is mixed.
func (s *Server) handleDeviceBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Names) == 0 {
		writeBadRequest(w, "names must not be empty")
		return
	}

	res, err := s.bridge.Batch(chi.URLParam(r, "device"), req.Names)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if len(res.Unknown) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// handleDeviceMessages returns the retained message log for a device.
func (s *Server) handleDeviceMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Messages(chi.URLParam(r, "device")))
}
