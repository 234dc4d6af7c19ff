// Package repository declares the persistence interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/account-service/internal/model"
)

// UserRepository is the credential store: user records plus the uniqueness
// invariants on username and email.
//
// CASE-INSENSITIVITY CONTRACT:
// GetByUsername/GetByEmail match case-insensitively, and Create/Update
// enforce uniqueness case-insensitively. "Alice" and "alice" are the same
// account. The store is the source of truth for this — callers may
// pre-check for friendlier error messages, but the unique constraint is
// what actually prevents duplicates under concurrent writes.
type UserRepository interface {
	// Create persists a new user. user.PasswordHash must already be set;
	// the store never sees plaintext. Returns apperror.ErrConflict when the
	// username or email is already taken.
	Create(ctx context.Context, user *model.User) error

	// GetByID returns apperror.ErrNotFound when no such user exists.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByUsername looks up case-insensitively.
	GetByUsername(ctx context.Context, username string) (*model.User, error)

	// GetByEmail looks up case-insensitively.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateProfile replaces username, names, and email for the given id.
	// Returns apperror.ErrConflict when the new username or email collides
	// with another account.
	UpdateProfile(ctx context.Context, id string, input model.ProfileInput) (*model.User, error)

	// UpdatePassword replaces the stored hash. Outstanding identity tokens
	// are NOT invalidated — they remain valid until natural expiry.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// Delete removes the record permanently. No soft delete, no cascade.
	Delete(ctx context.Context, id string) error
}
