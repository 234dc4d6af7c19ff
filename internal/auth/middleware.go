package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type means no other package can read or shadow
// the identity value — only code in this package can build the key.
type contextKey string

const identityKey contextKey = "identity"

// maxPeekBody caps how much of a request body the authenticator will read
// while looking for a token field. Bodies in this API are small JSON
// documents; anything past 1 MiB is not going to contain our token.
const maxPeekBody = 1 << 20

// Authenticate returns middleware that resolves the caller's identity and
// attaches it to the request context.
//
// The bearer credential is located by checking, in order:
//  1. a "token" field in a JSON request body
//  2. a "token" query parameter
//  3. the Authorization header, with a scheme prefix ("Bearer ...")
//     stripped when present
//
// DEGRADE, DON'T ABORT:
// A missing token is not an error — login and signup are served by this
// same pipeline and are necessarily anonymous. An invalid or expired token
// also degrades to anonymous (logged at debug) rather than failing the
// request here; it's the protected operations downstream, via
// RequireIdentity, that turn a missing identity into a 401. This keeps
// one global middleware for every route instead of two auth modes.
func Authenticate(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate := extractToken(r)
			if candidate == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := tokens.Verify(candidate)
			if err != nil {
				// Anonymous, not fatal. The debug log keeps expired-token
				// noise out of production logs while staying diagnosable.
				logger.Debug("discarding invalid token", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity returns middleware that rejects anonymous requests with
// 401 Unauthorized. Mount it after Authenticate on protected subtrees.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"you must be logged in"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext retrieves the verified identity from the request
// context. Returns (nil, false) for anonymous requests.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// extractToken finds the first token candidate on the request, checking
// body field, then query parameter, then Authorization header.
func extractToken(r *http.Request) string {
	if token := tokenFromBody(r); token != "" {
		return token
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return tokenFromAuthHeader(r)
}

// tokenFromBody peeks into a JSON request body for a top-level "token"
// field, then restores the body so downstream handlers can decode it again.
//
// READING A BODY TWICE:
// r.Body is a one-shot stream. We read it fully (bounded by maxPeekBody),
// then replace r.Body with a fresh reader over the same bytes. Handlers
// downstream see an untouched body.
func tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	_ = r.Body.Close()
	// Restore regardless of what we found — the handler still needs it.
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Token)
}

// tokenFromAuthHeader reads the Authorization header. A scheme prefix like
// "Bearer " is stripped by taking the last space-separated part, so both
// "Authorization: <token>" and "Authorization: Bearer <token>" work.
func tokenFromAuthHeader(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	return parts[len(parts)-1]
}
