package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "service_unavailable"
	ErrCodeBadGateway  = "bad_gateway"
	ErrCodeTimeout     = "timeout"
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

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps a bridge error onto an HTTP status.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shelly.ErrUnknownDevice),
		errors.Is(err, shelly.ErrUnknownProperty),
		errors.Is(err, shelly.ErrUnknownAction):
		writeNotFound(w, err.Error())
	case errors.Is(err, shelly.ErrReadOnlyProperty):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, shelly.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, shelly.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "command was not acknowledged in time")
	default:
		writeInternalError(w, "bridge operation failed")
	}
}
