package http

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/auth"
	"github.com/oaps-analytics/zendesk-reporting/internal/config"
	apperrors "github.com/oaps-analytics/zendesk-reporting/pkg/util"
)

// RateLimiter is a sliding-window request counter keyed by client network
// identifier. State is process-local: a multi-instance deployment needs an
// external shared counter instead.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	max    int
	now    func() time.Time
}

// NewRateLimiter builds a limiter. now may be nil; tests inject a fake
// clock through it.
func NewRateLimiter(cfg config.RateLimitConfig, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		window: cfg.Window(),
		max:    cfg.MaxRequests,
		now:    now,
	}
}

// Allow prunes timestamps older than the window, then admits the request
// if the pruned-plus-new count stays within the ceiling. Rejected requests
// are not recorded against the caller.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.hits[key]
	pruned := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	pruned = append(pruned, now)
	if len(pruned) > l.max {
		l.hits[key] = pruned[:len(pruned)-1]
		return false
	}
	l.hits[key] = pruned
	return true
}

// Count returns the recorded timestamps for a client, after pruning.
func (l *RateLimiter) Count(key string) int {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// Reset clears all recorded state; test harnesses call it between cases.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = make(map[string][]time.Time)
}

// WindowSeconds exposes the window length for retry hints.
func (l *RateLimiter) WindowSeconds() int {
	return int(l.window / time.Second)
}

// clientKey prefers the first forwarded-for entry when present, else the
// direct peer address. The header is trusted unconditionally, which is only
// sound behind a proxy that sets it.
func clientKey(c *fiber.Ctx) string {
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	return c.IP()
}

// RateLimitMiddleware rejects clients exceeding the admission ceiling.
// Bypass rules match the access guard.
func RateLimitMiddleware(limiter *RateLimiter, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if auth.Bypassed(c.Path()) {
			return c.Next()
		}
		key := clientKey(c)
		if !limiter.Allow(key) {
			logger.Warn("rate limit exceeded", zap.String("client", key), zap.String("path", c.Path()))
			return apperrors.NewRateLimited(limiter.WindowSeconds())
		}
		return c.Next()
	}
}
