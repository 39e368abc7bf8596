// Package ratelimit implements the per-key rate limiter, keyed by
// credential prefix (or client host when no credential is present), that
// guards the HTTP surface. The approval engine's pending-request cap is a
// store count and does not go through it. Contention on the bucket table
// uses fine-grained (sharded) locking
// rather than one global mutex, per the concurrency model's requirement
// that a single hot key never serializes unrelated callers.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request keyed by key is allowed right now
// under the given window/max configuration, and if not, how long the
// caller should wait before retrying.
type Limiter interface {
	// Allow consumes one unit against key's bucket and reports whether the
	// request may proceed. retryAfter is only meaningful when allowed is
	// false.
	Allow(ctx context.Context, key string, cfg Config) (allowed bool, retryAfter time.Duration, err error)
}

// Config is a per-route rate limit: at most Max requests per Window,
// applied independently to each bucket key.
type Config struct {
	Window time.Duration
	Max    int
}

// DefaultAPIConfig is the fallback rate limit applied to authenticated
// API routes that don't specify their own.
var DefaultAPIConfig = Config{Window: time.Minute, Max: 120}

// DefaultUnauthConfig is a tighter limit for unauthenticated routes
// (health, login, registration). The REST server does not use it: its
// Routes applies DefaultAPIConfig to every route.
var DefaultUnauthConfig = Config{Window: time.Minute, Max: 30}
