// Package handler contains the HTTP handlers for the account API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/service"
)

// AccountHandler translates HTTP requests into AccountService calls.
//
// ROUTES:
//   - POST   /api/auth/signup          → HandleSignup   (public)
//   - POST   /api/auth/login           → HandleLogin    (public)
//   - GET    /api/me                   → HandleMe
//   - PUT    /api/me/profile           → HandleUpdateProfile
//   - POST   /api/me/confirm-password  → HandleConfirmPassword
//   - PUT    /api/me/password          → HandleUpdatePassword
//   - DELETE /api/users/{id}           → HandleDelete
//
// The protected routes sit behind auth.RequireIdentity, so by the time a
// handler runs, IdentityFromContext is guaranteed to succeed. The ok check
// stays anyway — a handler mounted on the wrong subtree should fail closed.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler. Dependencies are injected;
// the handler knows nothing about how they were built.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// loginRequest is the login payload. A "token" field may also be present
// (the authenticator peeks at it) but is irrelevant here.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type confirmPasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

// HandleSignup creates an account and responds with {token, user}.
//
// HTTP: POST /api/auth/signup
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var input model.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.accounts.Signup(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// HandleLogin verifies credentials and responds with {token, user}.
//
// HTTP: POST /api/auth/login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the caller's own record, read fresh from the store.
//
// HTTP: GET /api/me
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "not logged in",
		})
		return
	}

	user, err := h.accounts.Me(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile updates username, names, and email.
//
// HTTP: PUT /api/me/profile
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "you must be logged in",
		})
		return
	}

	var input model.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), identity, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleConfirmPassword re-validates the caller's current password and
// responds with {"confirmed": true}. The client uses this as a gate before
// sensitive changes; it grants nothing server-side.
//
// HTTP: POST /api/me/confirm-password
func (h *AccountHandler) HandleConfirmPassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "you must be logged in",
		})
		return
	}

	var req confirmPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	confirmed, err := h.accounts.ConfirmPassword(r.Context(), identity, req.CurrentPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"confirmed": confirmed})
}

// HandleUpdatePassword replaces the caller's password and responds with a
// confirmation message. Outstanding tokens are not revoked — they age out
// at their natural expiry.
//
// HTTP: PUT /api/me/password
func (h *AccountHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "you must be logged in",
		})
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	if err := h.accounts.UpdatePassword(r.Context(), identity, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated successfully"})
}

// HandleDelete permanently deletes an account. The {id} path parameter
// must be the caller's own id; the service rejects anything else with 403.
//
// HTTP: DELETE /api/users/{id}
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "you must be logged in",
		})
		return
	}

	targetID := chi.URLParam(r, "id")
	if err := h.accounts.DeleteAccount(r.Context(), identity, targetID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user deleted", slog.String("userID", targetID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
