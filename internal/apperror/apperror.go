// Package apperror defines the application's error taxonomy.
//
// Services return these errors; the HTTP layer maps them to status codes
// with errors.Is/errors.As. Keeping the taxonomy in one package means the
// service layer never imports net/http and the handler layer never has to
// string-match error messages.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with AppError (below) so callers can both
// classify the failure (errors.Is) and show a human-readable message.
var (
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation — duplicate username or email.
	ErrConflict = errors.New("conflict")

	ErrValidation = errors.New("validation error")

	// ErrUnauthenticated means no valid identity was attached to the
	// request: missing, expired, or tampered token on a protected operation.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials means the caller identified an existing account
	// but presented the wrong password. Deliberately distinct from
	// ErrUnauthenticated: a login with a bad password is not the same
	// failure as a request with no token.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrForbidden = errors.New("forbidden")
)

// AppError carries a sentinel (for classification) plus a human-readable
// message (for the API response). Field is set for validation and conflict
// errors so clients can highlight the offending input.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

// Conflict reports a uniqueness violation on the named field, e.g.
// Conflict("username", "alice") → "username already exists: alice".
func Conflict(field, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", field, value),
		Field:   field,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

func InvalidCredentials(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller is authenticated but
// not allowed to touch the target resource. HTTP maps this to 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
