// Package approval implements the Approval Engine (C5): the durable
// proposal queue that stands in for a direct write whenever the calling
// agent is untrusted. Every accepted proposal is stored verbatim as
// change_details and replayed through the same pkg/executor registry a
// direct-write handler would call, so the approval path and the
// direct-write path share one source of truth for what a mutation does.
package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/canonicalize"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/ratelimit"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

// DefaultMaxPending is N_max_pending: the default cap on outstanding
// pending requests a single agent may hold before create() is rate
// limited.
const DefaultMaxPending = 50

// Engine wires the approval queue to the executor registry. One Engine is
// shared by every request; it carries no per-call state of its own.
type Engine struct {
	Store      *store.Store
	Registry   *executor.Registry
	Enums      *enums.Registry
	Schemas    *validate.SchemaRegistry
	Limiter    ratelimit.Limiter
	MaxPending int
}

// New constructs an Engine with DefaultMaxPending. Callers that need a
// different cap set MaxPending directly afterward.
func New(s *store.Store, reg *executor.Registry, en *enums.Registry, schemas *validate.SchemaRegistry, limiter ratelimit.Limiter) *Engine {
	return &Engine{Store: s, Registry: reg, Enums: en, Schemas: schemas, Limiter: limiter, MaxPending: DefaultMaxPending}
}

func (e *Engine) maxPending() int {
	if e.MaxPending > 0 {
		return e.MaxPending
	}
	return DefaultMaxPending
}

// Create serializes proposal and inserts a pending ApprovalRequest for
// agentID. It fails fast with ErrNoExecutor-shaped INVALID_INPUT if
// actionName has no registered executor, rather than only discovering
// that at approve() time, and with RATE_LIMITED if the agent already has
// maxPending or more requests outstanding.
func (e *Engine) Create(ctx context.Context, agentID, actionName string, proposal json.RawMessage, relatedJobID string) (contracts.ApprovalRequest, error) {
	if !e.Registry.Has(actionName) {
		return contracts.ApprovalRequest{}, contracts.InvalidInput("action", "unknown action: "+actionName)
	}

	pending, err := e.Store.CountPendingForAgent(ctx, e.Store.DB, agentID)
	if err != nil {
		return contracts.ApprovalRequest{}, contracts.Internal(err)
	}
	if pending >= e.maxPending() {
		return contracts.ApprovalRequest{}, contracts.RateLimited("too many pending approval requests", 0)
	}

	now := time.Now().UTC()
	req := contracts.ApprovalRequest{
		ID:                 uuid.New().String(),
		RequestType:        actionName,
		RequestedByAgentID: agentID,
		ChangeDetails:      proposal,
		Status:             contracts.ApprovalPending,
		RelatedJobID:       relatedJobID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.Store.InsertApproval(ctx, e.Store.DB, req); err != nil {
		return contracts.ApprovalRequest{}, contracts.Internal(err)
	}
	return req, nil
}

// ListPending returns outstanding requests oldest-first. Callers are
// responsible for enforcing that only an admin-scoped caller reaches this
// method.
func (e *Engine) ListPending(ctx context.Context, limit, offset int) ([]contracts.ApprovalRequest, error) {
	rows, err := e.Store.ListPendingApprovals(ctx, e.Store.DB, limit, offset)
	if err != nil {
		return nil, contracts.Internal(err)
	}
	return rows, nil
}

// Approve runs the full approval transition: conditional pending-
// ->approved, executor dispatch under the reviewer's audit identity, and
// linked-record bookkeeping, all in one transaction. If the
// executor itself fails, the outer transaction is rolled back (so no
// partial row survives) and a second, independent transaction records the
// approved-failed transition — the state change must outlive a rolled
// back executor attempt.
func (e *Engine) Approve(ctx context.Context, requestID, reviewerUserID string, details *contracts.ReviewDetails) (contracts.ApprovalRequest, executor.Result, error) {
	if details != nil {
		req, err := e.Store.ApprovalByID(ctx, e.Store.DB, requestID)
		if err != nil {
			return contracts.ApprovalRequest{}, executor.Result{}, err
		}
		if req.RequestType != "register_agent" {
			return contracts.ApprovalRequest{}, executor.Result{}, contracts.InvalidInput("review_details", "only register_agent accepts reviewer grants")
		}
	}

	var (
		result  executor.Result
		final   contracts.ApprovalRequest
		reqType string
	)
	now := time.Now().UTC()

	txErr := e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		req, err := e.Store.ApprovalByID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		reqType = req.RequestType
		if req.Terminal() {
			return contracts.ErrAlreadyProcessed
		}
		if !e.Registry.Has(req.RequestType) {
			return contracts.Wrap(contracts.CodeInternal, "no executor registered for action", contracts.ErrNoExecutor)
		}
		if err := e.Store.TransitionApproved(ctx, tx, requestID, reviewerUserID, now, details); err != nil {
			return err
		}

		env := &executor.Env{
			Store:         e.Store,
			Tx:            tx,
			Enums:         e.Enums,
			Schemas:       e.Schemas,
			Identity:      contracts.AuditIdentity{Kind: contracts.AuditKindUser, ID: reviewerUserID},
			ReviewDetails: details,
		}
		result, err = e.Registry.Dispatch(ctx, env, req.RequestType, req.ChangeDetails)
		if err != nil {
			return err
		}
		if err := e.Store.SetApprovalLinkedRecord(ctx, tx, requestID, result.RecordID); err != nil {
			return err
		}
		if req.RequestType == "register_agent" {
			if err := e.settleEnrollmentOnApproval(ctx, tx, requestID, contracts.EnrollmentApproved); err != nil {
				return err
			}
		}

		req.Status = contracts.ApprovalApproved
		req.ReviewedByUserID = reviewerUserID
		req.ReviewedAt = &now
		req.ReviewDetails = details
		req.LinkedRecordID = result.RecordID
		final = req
		return nil
	})

	if txErr != nil {
		if txErr == contracts.ErrAlreadyProcessed {
			return contracts.ApprovalRequest{}, executor.Result{}, contracts.Conflict("approval request already processed")
		}
		if domErr, ok := contracts.AsError(txErr); ok && domErr.Code != contracts.CodeInternal {
			// A validation-shaped failure (bad payload, unknown enum,
			// conflict) from the executor itself still needs to be
			// recorded as approved-failed before we surface it.
			e.markFailed(ctx, requestID, reqType, domErr.Error(), now)
			return contracts.ApprovalRequest{}, executor.Result{}, txErr
		}
		e.markFailed(ctx, requestID, reqType, txErr.Error(), now)
		return contracts.ApprovalRequest{}, executor.Result{}, contracts.Internal(txErr)
	}
	return final, result, nil
}

// settleEnrollmentOnApproval updates the enrollment session a
// register_agent request created, if one exists, to status in the same
// transaction as the approval transition. This is what lets EnrollRedeem
// succeed for a caller that approved via the ordinary approve endpoint
// and never called EnrollWait to observe the transition itself —
// EnrollWait's own settleEnrollment does the identical update for the
// caller that does poll, so either path leaves the session consistent.
func (e *Engine) settleEnrollmentOnApproval(ctx context.Context, tx *sql.Tx, requestID string, status contracts.EnrollmentStatus) error {
	session, err := e.Store.EnrollmentByApprovalRequestID(ctx, tx, requestID)
	if err == contracts.ErrSessionNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return e.Store.SetEnrollmentStatus(ctx, tx, session.ID, status)
}

// markFailed records the approved-failed transition in its own
// transaction-less statement so it survives regardless of what the
// executor's own transaction did. A failure here is logged by the caller,
// not propagated — the original executor error is what the client sees.
// For a register_agent request it also settles the enrollment session to
// rejected, mirroring EnrollWait's own approved-failed handling.
func (e *Engine) markFailed(ctx context.Context, requestID, requestType, execErr string, now time.Time) {
	_ = e.Store.MarkApprovalFailed(ctx, e.Store.DB, requestID, execErr, now)
	if requestType != "register_agent" {
		return
	}
	session, err := e.Store.EnrollmentByApprovalRequestID(ctx, e.Store.DB, requestID)
	if err != nil {
		return
	}
	_ = e.Store.SetEnrollmentStatus(ctx, e.Store.DB, session.ID, contracts.EnrollmentRejected)
}

// Reject moves a pending request straight to rejected; no executor runs.
func (e *Engine) Reject(ctx context.Context, requestID, reviewerUserID, notes string) (contracts.ApprovalRequest, error) {
	now := time.Now().UTC()
	if err := e.Store.TransitionRejected(ctx, e.Store.DB, requestID, reviewerUserID, now, notes); err != nil {
		if domErr, ok := contracts.AsError(err); ok {
			return contracts.ApprovalRequest{}, domErr
		}
		return contracts.ApprovalRequest{}, contracts.Internal(err)
	}
	req, err := e.Store.ApprovalByID(ctx, e.Store.DB, requestID)
	if err != nil {
		return contracts.ApprovalRequest{}, err
	}
	if req.RequestType == "register_agent" {
		if session, sErr := e.Store.EnrollmentByApprovalRequestID(ctx, e.Store.DB, requestID); sErr == nil {
			_ = e.Store.SetEnrollmentStatus(ctx, e.Store.DB, session.ID, contracts.EnrollmentRejected)
		}
	}
	return req, nil
}

// Diff computes the field-level deltas a reviewer sees for requestID: for
// a create_* proposal, every proposed key changes from nil; for an
// update_* proposal (or register_agent, which updates the pending agent
// row it targets), the current record is projected down to the keys the
// proposal actually sets and compared against it via canonical JSON.
func (e *Engine) Diff(ctx context.Context, requestID string) (contracts.ApprovalDiff, error) {
	req, err := e.Store.ApprovalByID(ctx, e.Store.DB, requestID)
	if err != nil {
		return contracts.ApprovalDiff{}, err
	}

	var after map[string]json.RawMessage
	if err := json.Unmarshal(req.ChangeDetails, &after); err != nil {
		return contracts.ApprovalDiff{}, contracts.Internal(fmt.Errorf("approval: unmarshal proposal: %w", err))
	}

	before, err := e.projectBefore(ctx, req, after)
	if err != nil {
		return contracts.ApprovalDiff{}, err
	}

	changes, err := canonicalize.Diff(before, toInterfaceMap(after))
	if err != nil {
		return contracts.ApprovalDiff{}, contracts.Internal(err)
	}
	out := contracts.ApprovalDiff{Changes: make(map[string]contracts.FieldDelta, len(changes))}
	for _, c := range changes {
		out.Changes[c.Field] = contracts.FieldDelta{From: c.Before, To: c.After}
	}
	return out, nil
}

func toInterfaceMap(raw map[string]json.RawMessage) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
