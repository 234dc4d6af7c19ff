package handler

// Response helpers shared by every handler in this package.
//
// Every error response has the same shape:
//
//	{"error": "conflict", "message": "username already exists: alice"}
//
// so the client always knows what fields to expect regardless of status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/account-service/internal/apperror"
)

// ErrorResponse is the standard error envelope for all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable type, e.g. "conflict"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response. Headers and status must go out before
// the first body byte, hence the ordering here.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already gone; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error onto an HTTP status and sends the
// standard envelope.
//
// The service layer returns apperror sentinels; this is the single place
// they become status codes. errors.Is walks the wrap chain, so a service
// error like fmt.Errorf("...: %w", apperror.Conflict(...)) still maps.
//
// Both ErrUnauthenticated and ErrInvalidCredentials map to 401 but keep
// distinct machine-readable codes — "no identity" and "wrong password" are
// different failures for the client even if the status matches.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
			errorType = "unauthenticated"
		case errors.Is(err, apperror.ErrInvalidCredentials):
			status = http.StatusUnauthorized
			errorType = "invalid_credentials"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — generic 500. The raw message might contain SQL or
	// file paths; it stays in the logs, not the response.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}
