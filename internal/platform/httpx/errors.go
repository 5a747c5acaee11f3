// Package httpx writes JSON and RFC7807 responses for the JSON endpoints.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/simdesk/internal/shared"
)

// fieldErrors is implemented by validation errors that name offending fields.
type fieldErrors interface {
	FieldErrors() map[string]string
}

// StatusFor maps a domain error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as a problem document. Internal errors carry no detail.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := ProblemDetail{Type: "about:blank", Title: http.StatusText(status), Status: status}
	if status != http.StatusInternalServerError {
		body.Detail = shared.UserSafeMessage(err)
	}
	var fe fieldErrors
	if errors.As(err, &fe) {
		body.Errors = fe.FieldErrors()
	}
	write(w, "application/problem+json", status, body)
}
