package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/apperrors"
	"github.com/argo-explorer/dashboard/pkg/logging"
)

// ApiResponse is the envelope of every successful JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// errorMappings translate domain errors into notifications, first match wins.
var errorMappings = []struct {
	err    error
	status int
	code   string
}{
	{apperrors.ErrEmptyQuery, http.StatusBadRequest, "empty_query"},
	{apperrors.ErrInvalidFileType, http.StatusBadRequest, "invalid_file_type"},
	{apperrors.ErrInvalidBaseURL, http.StatusBadRequest, "invalid_base_url"},
	{apperrors.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{apperrors.ErrQueryInFlight, http.StatusConflict, "query_in_flight"},
	{apperrors.ErrUploadInFlight, http.StatusConflict, "upload_in_flight"},
	{apperrors.ErrNotConnected, http.StatusServiceUnavailable, "not_connected"},
	{apperrors.ErrUploadUnavailable, http.StatusServiceUnavailable, "upload_unavailable"},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrAllCandidatesFailed, http.StatusBadGateway, "backend_unreachable"},
	{apperrors.ErrUnexpectedResponse, http.StatusBadGateway, "unexpected_response"},
}

// WriteError maps err to a status and error code and writes it. Backend
// failures become 502 with the backend's own message; anything unrecognised
// is logged and reported as a 500.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := err.Error()

	matched := false
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			status, code, matched = m.status, m.code, true
			break
		}
	}
	if !matched {
		var se *apperrors.StatusError
		if errors.As(err, &se) {
			status, code, matched = http.StatusBadGateway, "backend_error", true
		}
	}
	if !matched {
		logger.Error("Request failed", zap.String("error", logging.SanitizeError(err)))
		message = "Internal server error"
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

func respond(w http.ResponseWriter, logger *zap.Logger, data any) {
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
