package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
)

type relationshipProposal struct {
	ID         string                 `json:"id"`
	SourceType contracts.NodeType     `json:"source_type"`
	SourceID   string                 `json:"source_id"`
	TargetType contracts.NodeType     `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	TypeName   string                 `json:"type"`
	Status     string                 `json:"status"`
	Properties map[string]interface{} `json:"properties"`
}

func createRelationship(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p relationshipProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	typeID, err := env.Enums.ResolveRelationshipType(p.TypeName)
	if err != nil {
		return Result{}, contracts.InvalidInput("type", "unknown relationship type")
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	if p.SourceType == p.TargetType && p.SourceID == p.TargetID {
		return Result{}, contracts.InvalidInput("target_id", "relationship cannot be self-referential")
	}
	existing, err := env.Store.FindReverseRelationship(ctx, env.Tx, p.SourceType, p.SourceID, p.TargetType, p.TargetID, typeID)
	if err != nil {
		return Result{}, contracts.Internal(err)
	}
	if existing != "" {
		return Result{}, contracts.Conflict("this relationship already exists")
	}

	properties, err := rejectBannedAndSanitize(p.Properties)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	r := contracts.Relationship{
		ID: uuid.New().String(), SourceType: p.SourceType, SourceID: p.SourceID,
		TargetType: p.TargetType, TargetID: p.TargetID, TypeID: typeID, StatusID: statusID,
		Properties: properties, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertRelationship(ctx, env.Tx, r); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "relationships", r.ID, audit.ActionCreate, nil, r, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{RecordID: r.ID}, nil
}

func updateRelationship(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p relationshipProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.RelationshipByID(ctx, env.Tx, p.ID)
	if err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	properties, err := rejectBannedAndSanitize(p.Properties)
	if err != nil {
		return Result{}, err
	}

	after := before
	after.StatusID, after.Properties, after.UpdatedAt = statusID, properties, time.Now().UTC()
	if err := env.Store.UpdateRelationship(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "relationships", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{RecordID: after.ID}, nil
}
