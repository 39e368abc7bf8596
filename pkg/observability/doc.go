// Package observability provides OpenTelemetry tracing and Prometheus metrics
// for Nebula services. It implements production-ready observability following
// cloud-native best practices.
//
// # Tracing
//
// Initialize tracing at application startup:
//
//	tp, err := observability.New(ctx, &observability.Config{
//		ServiceName:  "nebula-core",
//		OTLPEndpoint: "otel-collector:4317",
//		SampleRate:   0.1, // 10% sampling in production
//	})
//	defer tp.Shutdown(ctx)
//
// Create spans manually:
//
//	ctx, span := tp.StartSpan(ctx, "operation_name")
//	defer span.End()
//
// # Metrics
//
// TrackOperation wraps an operation with a span, the active-operation
// gauge, and the RED (rate, errors, duration) counters in one call:
//
//	ctx, done := tp.TrackOperation(ctx, "approval.approve",
//		ApprovalOperation(requestID, "pending")...)
//	defer done(err)
//
// Record domain events against the attribute helpers in attrs.go:
//
//	tp.RecordRequest(ctx, NodeOperation("entity", entityID, "create_entity", "ok")...)
package observability
