// Package observability provides Nebula-specific instrumentation helpers.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Nebula-specific semantic convention attributes, namespaced under "nebula.".
var (
	// Node attributes, shared across entities, knowledge items, jobs, etc.
	AttrNodeType = attribute.Key("nebula.node.type")
	AttrNodeID   = attribute.Key("nebula.node.id")

	// Caller attributes.
	AttrCallerKind    = attribute.Key("nebula.caller.kind")
	AttrCallerID      = attribute.Key("nebula.caller.id")
	AttrCallerTrusted = attribute.Key("nebula.caller.trusted")

	// Action dispatch attributes.
	AttrAction       = attribute.Key("nebula.action")
	AttrActionStatus = attribute.Key("nebula.action.status")

	// Approval engine attributes.
	AttrApprovalRequestID = attribute.Key("nebula.approval.request_id")
	AttrApprovalStatus    = attribute.Key("nebula.approval.status")

	// Bootstrap enrollment attributes.
	AttrEnrollmentSessionID = attribute.Key("nebula.enrollment.session_id")
	AttrEnrollmentStatus    = attribute.Key("nebula.enrollment.status")

	// Scope mediation attributes.
	AttrScopeNames    = attribute.Key("nebula.scope.names")
	AttrScopeDecision = attribute.Key("nebula.scope.decision")
)

// NodeOperation creates attributes for a single action-dispatch
// invocation against a node of the given type and id.
func NodeOperation(nodeType, nodeID, action, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrNodeType.String(nodeType),
		AttrNodeID.String(nodeID),
		AttrAction.String(action),
		AttrActionStatus.String(status),
	}
}

// CallerOperation creates attributes describing the resolved caller
// behind a request.
func CallerOperation(kind, id string, trusted bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCallerKind.String(kind),
		AttrCallerID.String(id),
		AttrCallerTrusted.Bool(trusted),
	}
}

// ApprovalOperation creates attributes for an approval engine transition.
func ApprovalOperation(requestID, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrApprovalRequestID.String(requestID),
		AttrApprovalStatus.String(status),
	}
}

// EnrollmentOperation creates attributes for a bootstrap enrollment
// session transition.
func EnrollmentOperation(sessionID, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnrollmentSessionID.String(sessionID),
		AttrEnrollmentStatus.String(status),
	}
}

// ScopeOperation creates attributes for a scope mediator decision.
func ScopeOperation(scopeNames []string, decision string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrScopeNames.StringSlice(scopeNames),
		AttrScopeDecision.String(decision),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err on the current span, if any.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
