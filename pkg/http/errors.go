package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error       string `json:"error"`                  // Machine-readable error code
	Message     string `json:"message"`                // Human-readable message
	WaitSeconds int    `json:"wait_seconds,omitempty"` // Retry hint for rate-limited callers
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteIPBlocked writes the distinguishable blocked outcome so callers
// can render the IP_BLOCKED reason rather than a generic failure.
func WriteIPBlocked(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, "IP_BLOCKED", "Requests from this address are blocked")
}

// WriteRateLimited writes a policy denial with a wait hint.
func WriteRateLimited(w http.ResponseWriter, waitSeconds int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	resp := ErrorResponse{
		Error:       "rate_limit_exceeded",
		Message:     "Too many attempts, try again later",
		WaitSeconds: waitSeconds,
	}
	_ = json.NewEncoder(w).Encode(resp)
}
