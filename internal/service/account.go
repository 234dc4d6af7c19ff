// Package service — account business logic.
//
// AccountService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AccountHandler (HTTP) → AccountService (business rules) → UserRepository (DB)
//	                      ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Validate inputs server-side (the client validates too, but the client
//     is not a trust boundary)
//   - Orchestrate credential checks: lookup, bcrypt compare, token issue
//   - Enforce ownership on destructive operations
//   - Stay free of HTTP concerns so it can be tested with fakes
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/repository"
)

// emailPattern is deliberately loose: something, an @, something, a dot,
// something. Real validation of an address is sending mail to it; this
// only rejects obvious garbage.
var emailPattern = regexp.MustCompile(`.+@.+\..+`)

// minPasswordLength is the server-side floor for new passwords.
const minPasswordLength = 8

// AccountService handles signup, login, and account maintenance.
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with all dependencies
// injected. Wired once in server.New.
func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the issued token with the user's public record, the
// shape both login and signup respond with.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Signup creates a new account and issues a token for it.
//
// Uniqueness is checked twice, on purpose:
//  1. A pre-check here, so the common case gets a precise "username taken"
//     vs "email taken" message without relying on error-string inspection.
//  2. The store's unique indexes, which are the actual guarantee. Two
//     concurrent signups for the same name both pass the pre-check; the
//     index makes exactly one INSERT win and the loser still comes back as
//     a Conflict.
func (s *AccountService) Signup(ctx context.Context, input model.SignupInput) (*AuthResult, error) {
	if err := validateSignup(input); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, input.Username); err == nil {
		return nil, apperror.Conflict("username", input.Username)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/account: checking username %q: %w", input.Username, err)
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperror.Conflict("email", input.Email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/account: checking email %q: %w", input.Email, err)
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	user := &model.User{
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost the race: the constraint fired between pre-check and insert.
		return nil, err
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing token for user %s: %w", user.ID, err)
	}

	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and issues a fresh token.
//
// The two failure modes are deliberately distinct, matching the API
// contract: an unknown username is NotFound ("was the intention to sign
// up?"), a known username with the wrong password is InvalidCredentials.
// A wrong password must never surface as NotFound.
func (s *AccountService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("service/account: looking up user %q: %w", username, err)
	}

	ok, err := s.passwords.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("service/account: verifying password for user %s: %w", user.ID, err)
	}
	if !ok {
		return nil, apperror.InvalidCredentials("username or password incorrect")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{Token: token, User: user}, nil
}

// Me returns the caller's own record. The identity comes from the verified
// token, but the record is read fresh from the store — the token snapshot
// may be up to two hours stale.
func (s *AccountService) Me(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	if identity == nil {
		return nil, apperror.Unauthenticated("not logged in")
	}

	user, err := s.users.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: fetching user %s: %w", identity.ID, err)
	}
	return user, nil
}

// UpdateProfile changes the caller's username, names, and email.
//
// The uniqueness pre-check excludes the caller's own current values: keeping
// your existing username while changing your email must not trip the
// username check. Comparison is case-insensitive like everything else.
//
// NOTE: outstanding tokens keep the old snapshot. The caller's identity
// refreshes on the next login or token reissue; the store record is the
// truth in between.
func (s *AccountService) UpdateProfile(ctx context.Context, identity *auth.Identity, input model.ProfileInput) (*model.User, error) {
	if identity == nil {
		return nil, apperror.Unauthenticated("you must be logged in")
	}
	if err := validateProfile(input); err != nil {
		return nil, err
	}

	if !strings.EqualFold(input.Username, identity.Username) {
		if _, err := s.users.GetByUsername(ctx, input.Username); err == nil {
			return nil, apperror.Conflict("username", input.Username)
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/account: checking username %q: %w", input.Username, err)
		}
	}

	if !strings.EqualFold(input.Email, identity.Email) {
		if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
			return nil, apperror.Conflict("email", input.Email)
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/account: checking email %q: %w", input.Email, err)
		}
	}

	user, err := s.users.UpdateProfile(ctx, identity.ID, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", identity.ID))
	return user, nil
}

// ConfirmPassword re-verifies the caller's current password. The client
// calls this as a confirmation step before sensitive changes; it grants
// nothing by itself — the subsequent operation revalidates what it needs.
func (s *AccountService) ConfirmPassword(ctx context.Context, identity *auth.Identity, currentPassword string) (bool, error) {
	if identity == nil {
		return false, apperror.Unauthenticated("you must be logged in")
	}

	user, err := s.users.GetByID(ctx, identity.ID)
	if err != nil {
		return false, fmt.Errorf("service/account: fetching user %s: %w", identity.ID, err)
	}

	ok, err := s.passwords.Verify(user.PasswordHash, currentPassword)
	if err != nil {
		return false, fmt.Errorf("service/account: verifying password for user %s: %w", identity.ID, err)
	}
	if !ok {
		return false, apperror.InvalidCredentials("username or password incorrect")
	}
	return true, nil
}

// UpdatePassword replaces the caller's password.
//
// KNOWN LIMITATION: tokens issued before the change stay valid until they
// expire. A stolen token survives a password reset for up to two hours.
// Closing that gap needs server-side revocation or a credential version in
// the claims, neither of which this service carries.
func (s *AccountService) UpdatePassword(ctx context.Context, identity *auth.Identity, newPassword string) error {
	if identity == nil {
		return apperror.Unauthenticated("you must be logged in")
	}
	if len(newPassword) < minPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/account: hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password updated", slog.String("userID", identity.ID))
	return nil
}

// DeleteAccount permanently removes an account.
//
// OWNERSHIP CHECK:
// The API takes a target id, but the only id a caller may delete is their
// own — anything else is Forbidden. Accepting an arbitrary id with no
// check would let any logged-in user delete any account.
func (s *AccountService) DeleteAccount(ctx context.Context, identity *auth.Identity, targetID string) error {
	if identity == nil {
		return apperror.Unauthenticated("you must be logged in")
	}
	if targetID != identity.ID {
		return apperror.Forbidden("you may only delete your own account")
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	s.logger.Info("account deleted", slog.String("userID", targetID))
	return nil
}

// validateSignup applies the server-side field rules for new accounts.
func validateSignup(input model.SignupInput) error {
	if strings.TrimSpace(input.Username) == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return apperror.ValidationFailed("first_name", "first name is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		return apperror.ValidationFailed("last_name", "last name is required")
	}
	if !emailPattern.MatchString(input.Email) {
		return apperror.ValidationFailed("email", "must use a valid email address")
	}
	if len(input.Password) < minPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

// validateProfile applies the same field rules to profile updates, minus
// the password (which has its own operation).
func validateProfile(input model.ProfileInput) error {
	if strings.TrimSpace(input.Username) == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return apperror.ValidationFailed("first_name", "first name is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		return apperror.ValidationFailed("last_name", "last name is required")
	}
	if !emailPattern.MatchString(input.Email) {
		return apperror.ValidationFailed("email", "must use a valid email address")
	}
	return nil
}
