package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts the bucket key for an inbound request — typically the
// authenticated credential's prefix, falling back to client host for
// unauthenticated routes.
type KeyFunc func(r *http.Request) string

// ByClientHost is the KeyFunc used ahead of authentication, where no
// credential prefix is available yet.
func ByClientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return host
}

// TooManyRequestsWriter matches pkg/api's WriteTooManyRequests signature
// without importing pkg/api, avoiding an import cycle (pkg/api wires this
// middleware in, not the other way around).
type TooManyRequestsWriter func(w http.ResponseWriter, retryAfterSeconds int)

// Middleware returns an http.Handler wrapper that enforces cfg against
// limiter, keying buckets with keyFn and reporting rejections via write.
func Middleware(limiter Limiter, cfg Config, keyFn KeyFunc, write TooManyRequestsWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed, retryAfter, err := limiter.Allow(r.Context(), key, cfg)
			if err != nil {
				// Fail open: a rate limiter outage must not take down the
				// whole API surface.
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				seconds := int(retryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				write(w, seconds)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
