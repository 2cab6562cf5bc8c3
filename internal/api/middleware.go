// File: internal/api/middleware.go
package api

import (
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// corsMiddleware answers preflights and echoes allowed origins. An empty list
// or a "*" entry allows any origin.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || slices.Contains(allowed, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed reports whether a websocket handshake from origin may proceed.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	return slices.Contains(allowed, origin)
}

// jwtMiddleware requires an HS256 bearer token signed with secret. Browsers
// cannot set headers on a websocket handshake, so a "token" query parameter
// is accepted too.
func jwtMiddleware(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				logger.Debug("Rejected token.", zap.Error(err))
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="alris"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"type":"error","message":"` + reason + `"}`))
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter holds one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.clients {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(c.clients, k)
		}
	}
	e, ok := c.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","message":"Too many requests. Please slow down."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the host part of RemoteAddr, which RealIP has already
// rewritten from the forwarding headers.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
