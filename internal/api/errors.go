package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/insights-engine/internal/service"
	"github.com/insights-engine/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Success bool               `json:"success"`
	Error   types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
)

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string, string) {
	if errors.Is(err, service.ErrSyncInProgress) {
		return http.StatusConflict, ErrCodeConflict, "a sync is already running for this account"
	}

	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case "account_not_found":
			return http.StatusNotFound, ErrCodeNotFound, serviceErr.Message
		case "wrong_dashboard", "invalid_window":
			return http.StatusBadRequest, ErrCodeInvalidInput, serviceErr.Message
		case "credential_error":
			return http.StatusUnprocessableEntity, ErrCodeInvalidInput, serviceErr.Message
		default:
			return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
		}
	}

	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}
