package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/account-service/internal/apperror"
	"github.com/sakif/account-service/internal/model"
	"github.com/sakif/account-service/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user record. The caller provides the bcrypt hash;
// plaintext never reaches this package.
//
// ID and timestamps are assigned here and written back into the caller's
// struct, mirroring how the store would populate generated columns.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, first_name, last_name, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflictErr := translateConflict(err, user.Username, user.Email); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByUsername retrieves a user by username, case-insensitively.
//
// LOWER(username) = LOWER(?) matches the expression index created in
// migrate(), so the lookup stays indexed instead of scanning the table.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `WHERE LOWER(username) = LOWER(?)`, username)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE LOWER(email) = LOWER(?)`, email)
}

// getUser runs the shared SELECT with the given predicate.
func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, email, password_hash, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("sqlite: getting user (%v): %w", arg, err)
	}

	return &u, nil
}

// UpdateProfile replaces the user's username, names, and email.
//
// Uniqueness on the new username/email is enforced by the same indexes as
// Create; a collision with another account comes back as ErrConflict. The
// user's own current values don't collide with themselves since it's the
// same row being updated.
func (db *DB) UpdateProfile(ctx context.Context, id string, input model.ProfileInput) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET username = ?, first_name = ?, last_name = ?, email = ?, updated_at = ?
		 WHERE id = ?`,
		input.Username,
		input.FirstName,
		input.LastName,
		input.Email,
		time.Now(),
		id,
	)
	if err != nil {
		if conflictErr := translateConflict(err, input.Username, input.Email); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("user", id)
	}

	return db.GetByID(ctx, id)
}

// UpdatePassword replaces the stored hash for the given id.
func (db *DB) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash,
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// Delete removes the user permanently. Hard delete — there is no soft
// delete and nothing to cascade to.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

// translateConflict maps a SQLite unique-constraint violation onto the
// application's Conflict error, identifying which field collided from the
// index name in the driver's error message. Returns nil if err is not a
// uniqueness violation.
//
// The error text from modernc.org/sqlite looks like:
//
//	constraint failed: UNIQUE constraint failed: index 'idx_users_username_lower' (2067)
//
// String matching on a driver error is ugly but it's the interface the
// driver gives us; the index names are ours, declared in migrate().
func translateConflict(err error, username, email string) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "idx_users_username_lower"), strings.Contains(msg, "users.username"):
		return apperror.Conflict("username", username)
	case strings.Contains(msg, "idx_users_email_lower"), strings.Contains(msg, "users.email"):
		return apperror.Conflict("email", email)
	}
	// A unique violation on an index we don't recognize — still a conflict.
	return apperror.Conflict("user", username)
}
