// Package httpmw provides the shared HTTP middleware chain used by every
// service binary: request IDs, structured logging, panic recovery, and
// token-bucket rate limiting. Adapted from aex-gateway/internal/middleware.
package httpmw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/sardis-payments/sardis/internal/apperrors"
)

type contextKey string

const requestIDKey contextKey = "request_id"
const agentIDKey contextKey = "agent_id"

// RequestID injects a stable X-Request-ID into context and the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = generateID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID reads the request id stashed by RequestID.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithAgentID stashes the authenticated agent id in context.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}

// GetAgentID reads the agent id stashed by auth middleware.
func GetAgentID(ctx context.Context) string {
	if id, ok := ctx.Value(agentIDKey).(string); ok {
		return id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Logging logs one structured line per request via slog.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.InfoContext(r.Context(), "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(r.Context()),
			"size", wrapped.size,
		)
	})
}

// Recovery converts panics into a structured 500 instead of crashing the
// process, matching spec.md §5's requirement that a single request's
// failure never takes down the service.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic_recovered", "error", rec, "stack", string(debug.Stack()))
				apperrors.WriteJSON(w, apperrors.Internal("an internal error occurred").WithRequestID(GetRequestID(r.Context())))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is a per-key token bucket refilled at limitPerMinute tokens
// per minute, grounded on aex-gateway/internal/middleware/ratelimit.go.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limitPerMinute,
		window:  time.Minute,
	}
}

func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.limit, lastRefill: now}
		rl.buckets[key] = b
	}
	if elapsed := now.Sub(b.lastRefill); elapsed >= rl.window {
		b.tokens = rl.limit
		b.lastRefill = now
	}
	resetAt = b.lastRefill.Add(rl.window)
	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, resetAt
	}
	return false, 0, resetAt
}

// RateLimit applies rl keyed on the authenticated agent id (or "anonymous").
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetAgentID(r.Context())
			if key == "" {
				key = "anonymous"
			}
			allowed, remaining, resetAt := rl.Allow(key)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			if !allowed {
				apperrors.WriteJSON(w, apperrors.New(apperrors.KindRateLimit, apperrors.CodeRateLimitMinute, "rate limit exceeded").WithRequestID(GetRequestID(r.Context())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain composes middleware in the given order (outermost first).
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

func generateID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
