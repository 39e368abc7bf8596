package mcptool

import (
	"context"
	"encoding/json"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// authorizeWrite mirrors pkg/api.Server.authorizeWrite: re-run the scope
// mediator against the record a write action targets before dispatch
// decides between the approval engine and the executor registry. Both
// transports share the same action set and the same trust boundary, so
// they share the same chokepoint logic.
func (h *handlers) authorizeWrite(ctx context.Context, caller contracts.Caller, action string, payload json.RawMessage) error {
	q := h.deps.Store.DB
	switch action {
	case "update_entity":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		return h.deps.Scope.EntityWriteAccess(ctx, q, caller, []string{p.ID})

	case "bulk_update_entity_tags", "bulk_update_entity_scopes":
		var p struct {
			EntityIDs []string `json:"entity_ids"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || len(p.EntityIDs) == 0 {
			return nil
		}
		return h.deps.Scope.EntityWriteAccess(ctx, q, caller, p.EntityIDs)

	case "update_knowledge":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		return h.deps.Scope.RelationshipEndpointCheck(ctx, q, caller, contracts.NodeKnowledge, p.ID)

	case "update_job", "update_job_status":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		return h.deps.Scope.JobOwnership(ctx, q, caller, p.ID)

	case "create_relationship":
		var p struct {
			SourceType contracts.NodeType `json:"source_type"`
			SourceID   string             `json:"source_id"`
			TargetType contracts.NodeType `json:"target_type"`
			TargetID   string             `json:"target_id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil
		}
		if err := h.deps.Scope.RelationshipEndpointCheck(ctx, q, caller, p.SourceType, p.SourceID); err != nil {
			return err
		}
		return h.deps.Scope.RelationshipEndpointCheck(ctx, q, caller, p.TargetType, p.TargetID)

	case "update_relationship":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		rel, err := h.deps.Store.RelationshipByID(ctx, q, p.ID)
		if err != nil {
			return contracts.NotFound("relationship")
		}
		if err := h.deps.Scope.RelationshipEndpointCheck(ctx, q, caller, rel.SourceType, rel.SourceID); err != nil {
			return err
		}
		return h.deps.Scope.RelationshipEndpointCheck(ctx, q, caller, rel.TargetType, rel.TargetID)

	default:
		return nil
	}
}
