package api

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nebula-core/nebula/pkg/observability"
)

// statusRecorder captures the status code written by the inner handler so
// the telemetry middleware can classify 4xx/5xx without the handler
// itself needing to know about tracing.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// TelemetryMiddleware wraps every request in a span and RED metrics
// sample named "<method> <path>". A nil provider (telemetry disabled)
// makes this a no-op passthrough.
func TelemetryMiddleware(provider *observability.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if provider == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op := r.Method + " " + r.URL.Path
			ctx, done := provider.TrackOperation(r.Context(), op,
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			var err error
			if rec.status >= 500 {
				err = errStatusInternal
			}
			done(err)
		})
	}
}

var errStatusInternal = httpStatusError{}

type httpStatusError struct{}

func (httpStatusError) Error() string { return "handler returned a server error status" }
