// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Username and Email are unique case-insensitively: "Alice" and "alice"
// are the same account for lookup and for uniqueness checks. The database
// enforces this with unique indexes over LOWER(username) / LOWER(email);
// the original casing the user typed is preserved for display.
//
// WHY PasswordHash `json:"-"`?
// The hash must never leave the server. Tagging the field with "-" makes
// it impossible for a handler to leak it by accident — encoding/json
// skips it no matter which struct ends up in a response body.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name"  db:"last_name"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"  db:"updated_at"`
}

// SignupInput is the payload for account creation. All fields are required;
// the service validates them before touching the store.
type SignupInput struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// ProfileInput is the payload for profile updates. Password changes go
// through their own operation and are deliberately not part of this type.
type ProfileInput struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
