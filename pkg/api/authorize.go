package api

import (
	"context"
	"encoding/json"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// authorizeWrite re-runs the scope mediator against the record a write
// action targets, before writeHandler decides whether the call goes to
// the approval engine or straight to the executor. The approval gate
// only decides whether a reviewer must sign off; it does not re-derive
// whether the caller may touch the record at all, so this is the one
// place that trust boundary is enforced for every write route, matching
// the read side's handleGetEntity/handleGetJob/handleGetRelationship.
//
// Actions with no existing target (the create_* and bulk_create_*
// family) have nothing to check here; the executor itself establishes
// the new record's scopes.
func (s *Server) authorizeWrite(ctx context.Context, caller contracts.Caller, action string, payload json.RawMessage) error {
	q := s.Store.DB
	switch action {
	case "update_entity":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		return s.Scope.EntityWriteAccess(ctx, q, caller, []string{p.ID})

	case "bulk_update_entity_tags", "bulk_update_entity_scopes":
		var p struct {
			EntityIDs []string `json:"entity_ids"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || len(p.EntityIDs) == 0 {
			return nil
		}
		return s.Scope.EntityWriteAccess(ctx, q, caller, p.EntityIDs)

	case "update_knowledge":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		return s.Scope.RelationshipEndpointCheck(ctx, q, caller, contracts.NodeKnowledge, p.ID)

	case "update_job", "update_job_status":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		return s.Scope.JobOwnership(ctx, q, caller, p.ID)

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
		if err := s.Scope.RelationshipEndpointCheck(ctx, q, caller, p.SourceType, p.SourceID); err != nil {
			return err
		}
		return s.Scope.RelationshipEndpointCheck(ctx, q, caller, p.TargetType, p.TargetID)

	case "update_relationship":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			return nil
		}
		rel, err := s.Store.RelationshipByID(ctx, q, p.ID)
		if err != nil {
			return contracts.NotFound("relationship")
		}
		if err := s.Scope.RelationshipEndpointCheck(ctx, q, caller, rel.SourceType, rel.SourceID); err != nil {
			return err
		}
		return s.Scope.RelationshipEndpointCheck(ctx, q, caller, rel.TargetType, rel.TargetID)

	default:
		return nil
	}
}
