package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/observon/indi-core/internal/bridge"
	"github.com/observon/indi-core/internal/catalog"
	"github.com/observon/indi-core/internal/profile"
	"github.com/observon/indi-core/internal/supervisor"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeUpstream     = "upstream_error"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// domainStatus maps domain sentinel errors to an HTTP status and code.
func domainStatus(err error) (int, string) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound),
		errors.Is(err, profile.ErrDriverNotFound),
		errors.Is(err, catalog.ErrDriverNotFound),
		errors.Is(err, supervisor.ErrUnknownDriver),
		errors.Is(err, bridge.ErrUnknownDevice),
		errors.Is(err, bridge.ErrUnknownProperty):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, profile.ErrProfileExists),
		errors.Is(err, profile.ErrDriverExists),
		errors.Is(err, supervisor.ErrAlreadyRunning),
		errors.Is(err, supervisor.ErrNotRunning):
		return http.StatusConflict, ErrCodeConflict

	case errors.Is(err, profile.ErrProfileProtected),
		errors.Is(err, bridge.ErrPermissionDenied):
		return http.StatusForbidden, ErrCodeForbidden

	case errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, supervisor.ErrInvalidProfile),
		errors.Is(err, bridge.ErrUnknownElement),
		errors.Is(err, bridge.ErrInvalidValue):
		return http.StatusBadRequest, ErrCodeBadRequest

	case errors.Is(err, supervisor.ErrSpawnFailed),
		errors.Is(err, supervisor.ErrFIFOWrite),
		errors.Is(err, bridge.ErrNotConnected):
		return http.StatusBadGateway, ErrCodeUpstream

	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeDomainError maps a domain error to its HTTP representation.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := domainStatus(err)
	writeError(w, status, code, err.Error())
}
