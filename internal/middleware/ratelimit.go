package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is one client IP's token bucket plus the last time we saw
// them, for garbage collection.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client-IP token bucket. It's mounted only on
// the credential endpoints (login, signup) — those are the ones worth
// brute-forcing, and bcrypt makes each attempt expensive for us too.
//
// The bucket refills at rpm requests per minute with a burst of rpm, so a
// client can spend a minute's budget at once but not sustain more.
type RateLimiter struct {
	rpm     int
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a limiter allowing rpm requests per minute per
// client IP. Non-positive rpm falls back to 10.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		rpm = 10
	}
	return &RateLimiter{
		rpm:     rpm,
		clients: make(map[string]*clientLimiter),
	}
}

// Handler is the middleware. Over-limit requests get 429 with Retry-After.
//
// Client identity is r.RemoteAddr as massaged by chi's RealIP middleware,
// which must run earlier in the chain so proxied clients aren't all
// counted against the proxy's address.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr so the bucket is keyed by
// host alone. RemoteAddr is "ip:port" on a direct connection, and the
// port changes on every TCP connection — keying on the raw value would
// hand a reconnecting client a fresh bucket each time.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	// Already a bare host (RealIP rewrote it from a forwarding header).
	return r.RemoteAddr
}

func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[clientIP]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.rpm)), rl.rpm),
		}
		rl.clients[clientIP] = cl
		rl.gcLocked()
	}
	cl.lastSeen = time.Now()

	return cl.limiter.Allow()
}

// gcLocked drops limiters for clients idle over ten minutes, once the map
// gets big. Called with rl.mu held.
func (rl *RateLimiter) gcLocked() {
	if len(rl.clients) < 1000 {
		return
	}
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}
