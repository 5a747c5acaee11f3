package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDenied indicates the principal's role ranks below the required one.
	ErrDenied = errors.New("insufficient role")
	// ErrValidation indicates a missing or malformed field.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateKey indicates a uniqueness constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage converts an error into text that can be shown in a flash or form.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrDenied):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrNotFound):
		return "The requested SIM card does not exist"
	case errors.Is(err, ErrDuplicateKey):
		return "A SIM card with the same IMEI, IMSI or phone number already exists"
	case errors.Is(err, ErrValidation):
		return "Please correct the highlighted fields"
	default:
		return "Something went wrong, please try again"
	}
}
