package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpattn/changereport/internal/domain"
)

type errorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message,omitempty"`
	CompletedRoots *int   `json:"completed_roots,omitempty"`
	TotalRoots     *int   `json:"total_roots,omitempty"`
}

// statusFor maps engine errors to HTTP status codes and stable error codes.
func statusFor(err error) (int, errorResponse) {
	var partial *domain.PartialResultError
	switch {
	case errors.As(err, &partial):
		return http.StatusGatewayTimeout, errorResponse{
			Error:          "partial_result",
			Message:        "report deadline exceeded",
			CompletedRoots: &partial.CompletedRoots,
			TotalRoots:     &partial.TotalRoots,
		}
	case errors.Is(err, domain.ErrInvalidWindow):
		return http.StatusBadRequest, errorResponse{Error: "invalid_window", Message: err.Error()}
	case errors.Is(err, domain.ErrWindowTooLarge):
		return http.StatusBadRequest, errorResponse{Error: "window_too_large", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusBadRequest, errorResponse{Error: "invalid_cursor", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidScope):
		return http.StatusBadRequest, errorResponse{Error: "invalid_scope", Message: err.Error()}
	case errors.Is(err, errInvalidParameter):
		return http.StatusBadRequest, errorResponse{Error: "invalid_parameter", Message: err.Error()}
	case errors.Is(err, domain.ErrUnknownKind):
		return http.StatusNotFound, errorResponse{Error: "unknown_kind", Message: err.Error()}
	case domain.IsRetryable(err):
		return http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable", Message: "history store unavailable, retry"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
