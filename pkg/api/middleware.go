package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/ratelimit"
)

type callerKey struct{}

// CallerFromContext extracts the caller an earlier middleware resolved.
func CallerFromContext(ctx context.Context) (contracts.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(contracts.Caller)
	return c, ok
}

// openRoutes never require a bearer credential: "/health", "/keys/login",
// and "/agents/register" are the only three routes reachable before a
// caller has any credential to present.
var openRoutes = map[string]bool{
	"/health":          true,
	"/keys/login":      true,
	"/agents/register": true,
}

// AuthMiddleware resolves the bearer credential on every route not in
// openRoutes via auth.Authenticator, binding the resulting Caller to the
// request context. Open routes still run through it so a credential, if
// present, is available, but its absence is never fatal for them.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := bearerCredential(r)
			if credential == "" && openRoutes[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			caller, err := authenticator.Authenticate(r.Context(), credential)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerCredential(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// RateLimitByCredential keys the rate limiter by the authenticated
// caller's id when one has been resolved, otherwise by the lookup prefix of
// the presented bearer credential, falling back to client host when the
// request carries no credential at all.
func RateLimitByCredential(r *http.Request) string {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		if cred := bearerCredential(r); cred != "" {
			return "key:" + auth.LookupPrefix(cred)
		}
		return ratelimit.ByClientHost(r)
	}
	switch caller.Kind {
	case contracts.CallerUser:
		return "user:" + caller.UserID
	case contracts.CallerAgent:
		return "agent:" + caller.AgentID
	default:
		return ratelimit.ByClientHost(r)
	}
}
