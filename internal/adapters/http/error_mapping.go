package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

type errorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details []domain.FieldError `json:"details,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrPersistence):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "VALIDATION_ERROR"
	case domain.IsKind(err, domain.ErrForbidden):
		return "FORBIDDEN"
	case domain.IsKind(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case domain.IsKind(err, domain.ErrTemporary):
		return "TEMPORARILY_UNAVAILABLE"
	case domain.IsKind(err, domain.ErrUpstream):
		return "UPSTREAM_FAILURE"
	case domain.IsKind(err, domain.ErrPersistence):
		return "PERSISTENCE_FAILED"
	case domain.IsKind(err, domain.ErrConflict):
		return "DUPLICATE_RESOURCE"
	default:
		return "INTERNAL_ERROR"
	}
}

var publicMessages = map[string]string{
	"UNAUTHENTICATED":         "authentication required",
	"VALIDATION_ERROR":        "invalid input",
	"FORBIDDEN":               "access to this resource is forbidden",
	"NOT_FOUND":               "resource not found",
	"TEMPORARILY_UNAVAILABLE": "service temporarily unavailable, retry later",
	"UPSTREAM_FAILURE":        "upstream service failed",
	"PERSISTENCE_FAILED":      "internal server error",
	"DUPLICATE_RESOURCE":      "resource already exists",
	"INTERNAL_ERROR":          "internal server error",
}

// writeError renders err without leaking its text. Server-side failures are
// logged with full detail instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	code := errorCode(err)
	resp := errorResponse{Error: publicMessages[code], Code: code}
	if code == "VALIDATION_ERROR" {
		resp.Details = domain.ValidationDetails(err)
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request_failed", "code", code, "error", err.Error())
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewValidationError(op).Add("body", "request body is too large")
		}
		return domain.NewValidationError(op).Add("body", "request body must be a JSON object")
	}
	return nil
}
