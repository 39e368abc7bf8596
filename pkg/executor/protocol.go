package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
)

type protocolProposal struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Steps   []string `json:"steps"`
	Status  string   `json:"status"`
	Scopes  []string `json:"scopes"`
}

func createProtocol(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p protocolProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	scopeIDs, err := env.Enums.ResolveScopes(p.Scopes)
	if err != nil {
		return Result{}, contracts.InvalidInput("scopes", "unknown scope")
	}
	existing, err := env.Store.ProtocolIDByName(ctx, env.Tx, p.Name)
	if err != nil {
		return Result{}, contracts.Internal(err)
	}
	if existing != "" {
		return Result{}, contracts.Conflict("protocol with this name already exists")
	}

	now := time.Now().UTC()
	proto := contracts.Protocol{
		ID: uuid.New().String(), Name: p.Name, Version: p.Version, Steps: p.Steps,
		StatusID: statusID, ScopeIDs: scopeIDs, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertProtocol(ctx, env.Tx, proto); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "protocols", proto.ID, audit.ActionCreate, nil, proto, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeProtocol, RecordID: proto.ID}, nil
}

func updateProtocol(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p protocolProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.ProtocolByID(ctx, env.Tx, p.ID)
	if err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	scopeIDs, err := env.Enums.ResolveScopes(p.Scopes)
	if err != nil {
		return Result{}, contracts.InvalidInput("scopes", "unknown scope")
	}

	after := before
	after.Name, after.Version, after.Steps = p.Name, p.Version, p.Steps
	after.StatusID, after.ScopeIDs = statusID, scopeIDs
	after.UpdatedAt = time.Now().UTC()

	if err := env.Store.UpdateProtocol(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "protocols", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeProtocol, RecordID: after.ID}, nil
}
