// Package auth provides identity tokens, password hashing, and the request
// authentication middleware.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client calls POST /api/auth/login (or /signup) with credentials
// 2. Server verifies them and issues a signed JWT carrying a snapshot of
//    the user's public attributes
// 3. On subsequent requests the Authenticate middleware locates the token
//    (body field, query parameter, or Authorization header), verifies it,
//    and attaches the decoded Identity to the request context
// 4. Protected handlers read the Identity from the context; public ones
//    simply ignore it
//
// WHY JWT?
// The token is stateless — no session table, no per-request DB lookup to
// answer "who is this". The signature ensures nobody can alter the payload
// without the server-held secret. The trade-off is revocability: a token
// stays valid until its expiry even if the account's password changes or
// the account is deleted. That window is bounded by the 2-hour lifetime
// and is an accepted limitation of this design.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/account-service/internal/model"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 2 * time.Hour

const issuer = "account-service"

// Identity is the decoded payload of a verified token: a snapshot of the
// user's public attributes at issue time. It is a snapshot, not a live
// view — if the user renames themselves, outstanding tokens keep the old
// values until they expire and a fresh one is issued.
type Identity struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// claims is the JWT payload: our identity snapshot plus the standard
// registered claims (sub, iat, exp, iss). The user ID lives both in the
// snapshot and in "sub" — sub is the standard place, the snapshot keeps
// the payload self-contained.
type claims struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies identity tokens.
//
// It holds the HMAC secret used for both signing and verification. The
// secret must be the same across restarts or every outstanding session
// dies; supply it via JWT_SECRET.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. A non-positive ttl falls back to DefaultTokenTTL.
//
// The secret should be at least 32 bytes of random data in production:
// JWT_SECRET=$(openssl rand -hex 32). Anything under 16 characters is
// rejected outright — a short HMAC key is brute-forceable offline.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates and signs a token for the given user.
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric — the same key signs
// and verifies, which is fine for a single service holding its own secret.
// The token is a pure function of (user, secret, clock); nothing is
// persisted server-side.
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.IssueWithDuration(user, s.ttl)
}

// IssueWithDuration creates a token with a custom expiry. Used by tests to
// mint already-expired tokens; production callers should use Issue.
func (s *TokenService) IssueWithDuration(user *model.User, d time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("auth: cannot issue token without a user ID")
	}

	now := time.Now()
	c := claims{
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and verifies a token string and returns the identity
// snapshot it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature verifies against our secret (payload wasn't tampered with)
//   - Current time is before ExpiresAt
//   - Issuer matches (a token minted by some other app is rejected)
//   - Algorithm is HS256 — jwt.WithValidMethods closes the "alg":"none"
//     confusion attack
//
// A failed Verify is not an application error: the Authenticate middleware
// treats it as "this request is anonymous" and moves on. Only protected
// operations turn a missing identity into a 401.
func (s *TokenService) Verify(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &Identity{
		ID:        c.Subject,
		Username:  c.Username,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
	}, nil
}
