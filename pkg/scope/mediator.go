package scope

import (
	"context"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/store"
)

// RecordStore is the narrow read surface the mediator needs from the
// store, satisfied structurally by *store.Store so this package never
// needs store's write methods.
type RecordStore interface {
	EntityByID(ctx context.Context, q store.Queryer, id string) (contracts.Entity, error)
	EntitiesByIDs(ctx context.Context, q store.Queryer, ids []string) ([]contracts.Entity, error)
	KnowledgeByID(ctx context.Context, q store.Queryer, id string) (contracts.KnowledgeItem, error)
	JobByID(ctx context.Context, q store.Queryer, id string) (contracts.Job, error)
	FileAttachmentsOf(ctx context.Context, q store.Queryer, fileID string) ([]contracts.NodeRef, error)
}

// Checker performs the store-assisted authorization checks: entityWriteAccess,
// jobOwnership, fileVisibility, relationshipEndpointCheck. It holds no
// connection of its own; callers pass whichever Queryer (the pool or an
// in-flight transaction) the surrounding request is using.
type Checker struct {
	store RecordStore
}

func NewChecker(s RecordStore) *Checker {
	return &Checker{store: s}
}

// EntityWriteAccess performs one batched lookup of entityIds' scope sets
// and fails if any id is missing or any scope set is not a subset of
// caller's effective scopes. Admin callers bypass the subset check.
func (c *Checker) EntityWriteAccess(ctx context.Context, q store.Queryer, caller contracts.Caller, entityIDs []string) error {
	if IsAdmin(caller.EffectiveScopeNames) {
		// Still confirm existence so a missing id surfaces as NOT_FOUND
		// rather than silently succeeding.
		entities, err := c.store.EntitiesByIDs(ctx, q, entityIDs)
		if err != nil {
			return fmt.Errorf("scope: entity write access: %w", err)
		}
		if len(entities) != len(dedupe(entityIDs)) {
			return contracts.NotFound("entity")
		}
		return nil
	}

	entities, err := c.store.EntitiesByIDs(ctx, q, entityIDs)
	if err != nil {
		return fmt.Errorf("scope: entity write access: %w", err)
	}
	if len(entities) != len(dedupe(entityIDs)) {
		return contracts.NotFound("entity")
	}
	for _, e := range entities {
		if !HasWriteScopes(caller.EffectiveScopeIDs, e.ScopeIDs) {
			return contracts.Forbidden("entity is not within your scopes")
		}
	}
	return nil
}

// JobOwnership enforces P10: agent callers may only touch jobs whose
// AgentID equals theirs, unless they are admin. Users always pass.
func (c *Checker) JobOwnership(ctx context.Context, q store.Queryer, caller contracts.Caller, jobID string) error {
	if caller.IsUser() || IsAdmin(caller.EffectiveScopeNames) {
		if _, err := c.store.JobByID(ctx, q, jobID); err != nil {
			return err
		}
		return nil
	}
	job, err := c.store.JobByID(ctx, q, jobID)
	if err != nil {
		return err
	}
	if !job.OwnedBy(caller.AgentID) {
		return contracts.NotFound("job")
	}
	return nil
}

// FileVisibility reports whether fileID is visible to caller: true if it
// has no attachments (public), or if caller passes the node-specific
// visibility rule for every attachment.
func (c *Checker) FileVisibility(ctx context.Context, q store.Queryer, caller contracts.Caller, fileID string) (bool, error) {
	attachments, err := c.store.FileAttachmentsOf(ctx, q, fileID)
	if err != nil {
		return false, fmt.Errorf("scope: file visibility: %w", err)
	}
	if len(attachments) == 0 {
		return true, nil
	}
	if IsAdmin(caller.EffectiveScopeNames) {
		return true, nil
	}
	for _, ref := range attachments {
		if err := c.RelationshipEndpointCheck(ctx, q, caller, ref.Type, ref.ID); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// RelationshipEndpointCheck dispatches by node type to the appropriate
// visibility rule: entity/knowledge nodes use the scope subset check, jobs
// use ownership, and all other node types (log, agent, file, protocol) are
// treated as scope-less and always visible.
func (c *Checker) RelationshipEndpointCheck(ctx context.Context, q store.Queryer, caller contracts.Caller, nodeType contracts.NodeType, nodeID string) error {
	if IsAdmin(caller.EffectiveScopeNames) {
		return nil
	}
	switch nodeType {
	case contracts.NodeEntity:
		e, err := c.store.EntityByID(ctx, q, nodeID)
		if err != nil {
			return err
		}
		if !HasWriteScopes(caller.EffectiveScopeIDs, e.ScopeIDs) {
			return contracts.NotFound("entity")
		}
		return nil
	case contracts.NodeKnowledge:
		k, err := c.store.KnowledgeByID(ctx, q, nodeID)
		if err != nil {
			return err
		}
		if !HasWriteScopes(caller.EffectiveScopeIDs, k.ScopeIDs) {
			return contracts.NotFound("knowledge item")
		}
		return nil
	case contracts.NodeJob:
		return c.JobOwnership(ctx, q, caller, nodeID)
	default:
		return nil
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
