package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("username", "alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "must use a valid email address"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthenticated",
			err:       Unauthenticated("not logged in"),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "InvalidCredentials wraps ErrInvalidCredentials",
			err:       InvalidCredentials("username or password incorrect"),
			target:    ErrInvalidCredentials,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("you may only delete your own account"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "InvalidCredentials does NOT match ErrUnauthenticated",
			err:       InvalidCredentials("username or password incorrect"),
			target:    ErrUnauthenticated,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrConflict",
			err:       NotFound("user", "alice"),
			target:    ErrConflict,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestErrorsIs_ThroughWrapping(t *testing.T) {
	// Service code wraps with %w; classification must survive the wrap.
	wrapped := fmt.Errorf("service/account: checking username: %w", Conflict("username", "bob"))

	if !errors.Is(wrapped, ErrConflict) {
		t.Error("errors.Is() should match ErrConflict through fmt.Errorf wrapping")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() should extract *AppError through wrapping")
	}
	if appErr.Field != "username" {
		t.Errorf("Field = %q, want %q", appErr.Field, "username")
	}
}

func TestAppError_Message(t *testing.T) {
	err := Conflict("email", "alice@example.com")
	want := "email already exists: alice@example.com"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
