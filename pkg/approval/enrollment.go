package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/contracts"
)

// EnrollStartResult is returned to a bootstrap caller exactly once; the
// raw token never appears in any later response.
type EnrollStartResult struct {
	RegistrationID  string
	EnrollmentToken string
	Status          contracts.EnrollmentStatus
}

// EnrollStart creates a pending agent, a register_agent approval request
// for it, and a fresh enrollment session, all as one transaction.
func (e *Engine) EnrollStart(ctx context.Context, name string, requestedScopes []string, requestedRequiresApproval bool, capabilities []string) (EnrollStartResult, error) {
	if name == "" {
		return EnrollStartResult{}, contracts.InvalidInput("name", "required")
	}
	existing, err := e.Store.AgentIDByName(ctx, e.Store.DB, name)
	if err != nil {
		return EnrollStartResult{}, contracts.Internal(err)
	}
	if existing != "" {
		return EnrollStartResult{}, contracts.Conflict("agent name already registered")
	}
	scopeIDs, err := e.Enums.ResolveScopes(requestedScopes)
	if err != nil {
		return EnrollStartResult{}, contracts.InvalidInput("requested_scopes", "unknown scope")
	}
	inactiveStatusID, err := e.Enums.ResolveStatus("inactive")
	if err != nil {
		return EnrollStartResult{}, contracts.Internal(err)
	}

	rawToken, err := auth.GenerateRawKey(auth.EnrollmentPrefix)
	if err != nil {
		return EnrollStartResult{}, contracts.Internal(err)
	}
	tokenHash, err := auth.HashCredential(rawToken)
	if err != nil {
		return EnrollStartResult{}, contracts.Internal(err)
	}

	now := time.Now().UTC()
	agentID := uuid.New().String()
	approvalID := uuid.New().String()
	sessionID := uuid.New().String()

	agent := contracts.Agent{
		ID: agentID, Name: name, OwnerScopeIDs: scopeIDs, Capabilities: capabilities,
		RequiresApproval: true, StatusID: inactiveStatusID, CreatedAt: now, UpdatedAt: now,
	}
	proposal, err := json.Marshal(map[string]string{"agent_id": agentID})
	if err != nil {
		return EnrollStartResult{}, contracts.Internal(err)
	}
	approvalReq := contracts.ApprovalRequest{
		ID: approvalID, RequestType: "register_agent", RequestedByAgentID: agentID,
		ChangeDetails: proposal, Status: contracts.ApprovalPending, CreatedAt: now, UpdatedAt: now,
	}
	session := contracts.EnrollmentSession{
		ID: sessionID, AgentID: agentID, EnrollmentTokenHash: tokenHash,
		Status: contracts.EnrollmentPendingApproval, ApprovalRequestID: approvalID,
		ExpiresAt: now.Add(contracts.DefaultEnrollmentTTL), CreatedAt: now,
	}

	txErr := e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Store.InsertAgent(ctx, tx, agent); err != nil {
			return err
		}
		if err := e.Store.InsertApproval(ctx, tx, approvalReq); err != nil {
			return err
		}
		if err := e.Store.InsertEnrollment(ctx, tx, session); err != nil {
			return err
		}
		identity := contracts.AuditIdentity{Kind: contracts.AuditKindAgent, ID: agentID}
		_, err := e.Store.Ledger.Append(ctx, tx, "agents", agentID, audit.ActionCreate, nil, agent, identity)
		return err
	})
	if txErr != nil {
		return EnrollStartResult{}, contracts.Internal(txErr)
	}

	return EnrollStartResult{RegistrationID: sessionID, EnrollmentToken: rawToken, Status: contracts.EnrollmentPendingApproval}, nil
}

// EnrollWaitResult is the long-poll response enrollWait returns once the
// approval leaves pending or timeoutSeconds elapses, whichever is first.
type EnrollWaitResult struct {
	Status       contracts.EnrollmentStatus
	CanRedeem    bool
	RetryAfterMs int64
	Reason       string
}

// enrollPollInterval is how often EnrollWait re-checks the approval row
// while long-polling.
const enrollPollInterval = 500 * time.Millisecond

// EnrollWait blocks up to timeoutSeconds (capped at MaxEnrollWaitSeconds)
// watching the session's approval request for a terminal transition. A
// token mismatch returns a generic not-found rather than distinguishing
// "wrong token" from "wrong id", so a caller can't use this as an oracle
// for valid registration ids.
func (e *Engine) EnrollWait(ctx context.Context, registrationID, token string, timeoutSeconds int) (EnrollWaitResult, error) {
	if timeoutSeconds <= 0 || timeoutSeconds > contracts.MaxEnrollWaitSeconds {
		timeoutSeconds = contracts.MaxEnrollWaitSeconds
	}
	session, err := e.Store.EnrollmentByID(ctx, e.Store.DB, registrationID)
	if err != nil {
		return EnrollWaitResult{}, contracts.NotFound("enrollment session")
	}
	if !auth.VerifyCredential(token, session.EnrollmentTokenHash) {
		return EnrollWaitResult{}, contracts.NotFound("enrollment session")
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		return EnrollWaitResult{Status: contracts.EnrollmentExpired}, nil
	}
	if session.Status != contracts.EnrollmentPendingApproval {
		return EnrollWaitResult{Status: session.Status, CanRedeem: session.CanRedeem(now)}, nil
	}

	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(enrollPollInterval)
	defer ticker.Stop()

	for {
		req, err := e.Store.ApprovalByID(ctx, e.Store.DB, session.ApprovalRequestID)
		if err != nil {
			return EnrollWaitResult{}, contracts.Internal(err)
		}
		if req.Terminal() {
			return e.settleEnrollment(ctx, session, req)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return EnrollWaitResult{
				Status:       contracts.EnrollmentPendingApproval,
				RetryAfterMs: int64(timeoutSeconds) * 1000,
			}, nil
		}
		select {
		case <-ctx.Done():
			return EnrollWaitResult{}, contracts.Internal(ctx.Err())
		case <-ticker.C:
		case <-time.After(remaining):
			return EnrollWaitResult{
				Status:       contracts.EnrollmentPendingApproval,
				RetryAfterMs: int64(timeoutSeconds) * 1000,
			}, nil
		}
	}
}

// settleEnrollment persists the terminal approval outcome onto the
// enrollment session the first time EnrollWait (by any caller) observes
// it, so a later redeem doesn't need to re-derive it from the approval
// row.
func (e *Engine) settleEnrollment(ctx context.Context, session contracts.EnrollmentSession, req contracts.ApprovalRequest) (EnrollWaitResult, error) {
	switch req.Status {
	case contracts.ApprovalApproved:
		if err := e.Store.SetEnrollmentStatus(ctx, e.Store.DB, session.ID, contracts.EnrollmentApproved); err != nil {
			return EnrollWaitResult{}, contracts.Internal(err)
		}
		return EnrollWaitResult{Status: contracts.EnrollmentApproved, CanRedeem: true}, nil
	case contracts.ApprovalApprovedFailed:
		if err := e.Store.SetEnrollmentStatus(ctx, e.Store.DB, session.ID, contracts.EnrollmentRejected); err != nil {
			return EnrollWaitResult{}, contracts.Internal(err)
		}
		return EnrollWaitResult{Status: contracts.EnrollmentRejected, Reason: req.ExecutorError}, nil
	default: // rejected
		if err := e.Store.SetEnrollmentStatus(ctx, e.Store.DB, session.ID, contracts.EnrollmentRejected); err != nil {
			return EnrollWaitResult{}, contracts.Internal(err)
		}
		return EnrollWaitResult{Status: contracts.EnrollmentRejected, Reason: req.ReviewNotes}, nil
	}
}

// EnrollRedeemResult carries the freshly minted credential back exactly
// once; redeeming the same session a second time is ErrAlreadyRedeemed.
type EnrollRedeemResult struct {
	APIKey  string
	AgentID string
	Scopes  []string
}

// EnrollRedeem atomically transitions an approved, unredeemed session to
// redeemed and mints the agent's first API key.
func (e *Engine) EnrollRedeem(ctx context.Context, registrationID, token string) (EnrollRedeemResult, error) {
	session, err := e.Store.EnrollmentByID(ctx, e.Store.DB, registrationID)
	if err != nil {
		return EnrollRedeemResult{}, contracts.NotFound("enrollment session")
	}
	if !auth.VerifyCredential(token, session.EnrollmentTokenHash) {
		return EnrollRedeemResult{}, contracts.NotFound("enrollment session")
	}
	if session.Status == contracts.EnrollmentRedeemed {
		return EnrollRedeemResult{}, contracts.Conflict("enrollment token already redeemed")
	}
	now := time.Now().UTC()
	if !session.CanRedeem(now) {
		return EnrollRedeemResult{}, contracts.Forbidden("enrollment session is not redeemable")
	}

	var result EnrollRedeemResult
	txErr := e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Store.RedeemEnrollment(ctx, tx, session.ID); err != nil {
			return err
		}
		agent, err := e.Store.AgentByID(ctx, tx, session.AgentID)
		if err != nil {
			return err
		}
		raw, err := auth.GenerateRawKey(auth.KeyPrefix)
		if err != nil {
			return err
		}
		hashed, err := auth.HashCredential(raw)
		if err != nil {
			return err
		}
		key := contracts.APIKey{
			ID: uuid.New().String(), Prefix: auth.LookupPrefix(raw), HashedKey: hashed,
			AgentID: agent.ID, CreatedAt: now,
		}
		if err := e.Store.InsertKey(ctx, tx, key); err != nil {
			return err
		}
		result = EnrollRedeemResult{APIKey: raw, AgentID: agent.ID, Scopes: e.Enums.NamesOf(agent.OwnerScopeIDs)}
		return nil
	})
	if txErr == contracts.ErrAlreadyRedeemed {
		return EnrollRedeemResult{}, contracts.Conflict("enrollment token already redeemed")
	}
	if txErr != nil {
		return EnrollRedeemResult{}, contracts.Internal(txErr)
	}
	return result, nil
}
