package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Stable machine-readable error kinds returned in APIResponse.Code.
const (
	CodeValidation      = "validation_error"
	CodeAccessDenied    = "access_denied"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeUnauthenticated = "unauthenticated"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal_error"
)

// APIResponse is the envelope of every REST response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{Success: true, Data: data})
}

// Error writes an error envelope, deriving status and code from the error
// chain. Unclassified errors become 500 with a generic message so no
// internal detail leaks; the caller is expected to log the original.
func Error(w http.ResponseWriter, err error) {
	status, code := Classify(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}

	writeEnvelope(w, status, APIResponse{Success: false, Error: msg, Code: code})
}

// ErrorWithMessage writes an error envelope with an explicit status.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, APIResponse{Success: false, Error: message, Code: codeForStatus(status)})
}

// Classify maps a domain error to its HTTP status and error kind.
// ErrAccessDenied is checked before ErrForbidden because it wraps it.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden, CodeAccessDenied
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
