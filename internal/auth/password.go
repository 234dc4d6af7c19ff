// Package auth — password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, which is the point: a leaked database of
// bcrypt hashes is expensive to brute-force. It also generates a random
// salt per hash and embeds it in the output, so two users with the same
// password get different hashes and no separate salt column is needed.
//
// Hash format (full output of bcrypt.GenerateFromPassword):
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (10 rounds → 2^10 iterations)
//	 version
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
//
// Cost 10 is the floor this service accepts; lower costs hash too fast to
// resist offline cracking. Raise it via BCRYPT_COST if your hardware can
// afford the extra login latency (each +1 doubles the time).
const DefaultCost = 10

// PasswordService hashes and verifies passwords.
//
// It's a struct rather than free functions so the cost can be injected:
// tests use bcrypt.MinCost to avoid paying ~100ms per hash, production
// uses DefaultCost or higher.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService. Costs below bcrypt.MinCost
// fall back to DefaultCost, so a zero-value config can't silently produce
// weak hashes.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with the minimum
// bcrypt cost. Do NOT use in production — it exists so test suites don't
// spend most of their runtime inside bcrypt.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes a plaintext password. The returned string is self-contained
// (salt and cost embedded) and goes straight into the password_hash column.
//
// Passwords longer than 72 bytes are rejected rather than silently
// truncated — 72 bytes is a hard bcrypt limit.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash.
//
// bcrypt.CompareHashAndPassword is constant-time, so response timing leaks
// nothing about how much of the password was right. A mismatch returns
// (false, nil) — it's an expected outcome, not an error. Only a malformed
// hash or an internal bcrypt failure returns a non-nil error.
func (p *PasswordService) Verify(hash, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return true, nil
}
