package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/contracts"
)

type registerAgentProposal struct {
	AgentID string `json:"agent_id"`
}

// registerAgent is the approval-only executor behind the register_agent
// action: it activates an agent that was created pending (by direct
// registration or bootstrap enrollment), applies any reviewer grants in
// env.ReviewDetails over the agent's originally requested scopes and
// approval requirement, and mints a fresh API key for it. The raw key
// travels back only in Result.Secret; the store only ever sees its hash.
func registerAgent(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p registerAgentProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.AgentID == "" {
		return Result{}, contracts.InvalidInput("agent_id", "required")
	}
	before, err := env.Store.AgentByID(ctx, env.Tx, p.AgentID)
	if err != nil {
		return Result{}, err
	}

	activeStatusID, err := env.Enums.ResolveStatus("active")
	if err != nil {
		return Result{}, contracts.Internal(err)
	}

	scopeIDs := before.OwnerScopeIDs
	requiresApproval := before.RequiresApproval
	if rd := env.ReviewDetails; rd != nil {
		if len(rd.GrantScopes) > 0 {
			resolved, err := env.Enums.ResolveScopes(rd.GrantScopes)
			if err != nil {
				return Result{}, contracts.InvalidInput("grant_scopes", "unknown scope")
			}
			scopeIDs = resolved
		}
		if rd.GrantRequiresApproval != nil {
			requiresApproval = *rd.GrantRequiresApproval
		}
	}

	now := time.Now().UTC()
	if err := env.Store.ActivateAgent(ctx, env.Tx, before.ID, activeStatusID, scopeIDs, requiresApproval, now); err != nil {
		return Result{}, err
	}

	after := before
	after.StatusID, after.OwnerScopeIDs, after.RequiresApproval, after.UpdatedAt = activeStatusID, scopeIDs, requiresApproval, now

	raw, err := auth.GenerateRawKey(auth.KeyPrefix)
	if err != nil {
		return Result{}, contracts.Internal(err)
	}
	hashed, err := auth.HashCredential(raw)
	if err != nil {
		return Result{}, contracts.Internal(err)
	}
	key := contracts.APIKey{
		ID:        uuid.New().String(),
		Prefix:    auth.LookupPrefix(raw),
		HashedKey: hashed,
		AgentID:   after.ID,
		CreatedAt: now,
	}
	if err := env.Store.InsertKey(ctx, env.Tx, key); err != nil {
		return Result{}, contracts.Internal(err)
	}

	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "agents", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeAgent, RecordID: after.ID, Secret: raw}, nil
}
