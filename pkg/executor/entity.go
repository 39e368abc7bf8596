package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/validate"
)

// entityProposal is the wire shape both create_entity and update_entity
// accept. ID is ignored on create and required on update.
type entityProposal struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	TypeName  string                 `json:"type"`
	Status    string                 `json:"status"`
	Scopes    []string               `json:"scopes"`
	Tags      []string               `json:"tags"`
	Metadata  map[string]interface{} `json:"metadata"`
	VaultPath string                 `json:"vault_path"`
}

func createEntity(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p entityProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}

	typeID, err := env.Enums.ResolveEntityType(p.TypeName)
	if err != nil {
		return Result{}, contracts.InvalidInput("type", "unknown entity type")
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	scopeIDs, err := env.Enums.ResolveScopes(p.Scopes)
	if err != nil {
		return Result{}, contracts.InvalidInput("scopes", "unknown scope")
	}
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}

	if p.VaultPath != "" {
		if err := validate.RejectPathTraversal(p.VaultPath); err != nil {
			return Result{}, err
		}
		existing, err := env.Store.EntityIDByVaultPath(ctx, env.Tx, p.VaultPath)
		if err != nil {
			return Result{}, contracts.Internal(err)
		}
		if existing != "" {
			return Result{}, contracts.Conflict("vault path already in use")
		}
	}
	existing, err := env.Store.EntityIDByNameTypeScopes(ctx, env.Tx, p.Name, typeID, scopeIDs)
	if err != nil {
		return Result{}, contracts.Internal(err)
	}
	if existing != "" {
		return Result{}, contracts.Conflict("entity with this name, type, and scope set already exists")
	}

	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}
	if err := env.Schemas.ValidateEntityMetadata(p.TypeName, metadata); err != nil {
		return Result{}, contracts.InvalidInput("metadata", err.Error())
	}
	scopeNames := env.Enums.NamesOf(scopeIDs)
	if err := validate.ValidateContextSegments(contextSegmentsOf(metadata), scopeNames); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	e := contracts.Entity{
		ID: uuid.New().String(), Name: p.Name, TypeID: typeID, StatusID: statusID,
		ScopeIDs: scopeIDs, Tags: p.Tags, Metadata: metadata, VaultPath: p.VaultPath,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertEntity(ctx, env.Tx, e); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "entities", e.ID, audit.ActionCreate, nil, e, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeEntity, RecordID: e.ID}, nil
}

func updateEntity(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p entityProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.EntityByID(ctx, env.Tx, p.ID)
	if err != nil {
		return Result{}, err
	}

	typeID, err := env.Enums.ResolveEntityType(p.TypeName)
	if err != nil {
		return Result{}, contracts.InvalidInput("type", "unknown entity type")
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	scopeIDs, err := env.Enums.ResolveScopes(p.Scopes)
	if err != nil {
		return Result{}, contracts.InvalidInput("scopes", "unknown scope")
	}
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}

	if p.VaultPath != "" && p.VaultPath != before.VaultPath {
		if err := validate.RejectPathTraversal(p.VaultPath); err != nil {
			return Result{}, err
		}
		existing, err := env.Store.EntityIDByVaultPath(ctx, env.Tx, p.VaultPath)
		if err != nil {
			return Result{}, contracts.Internal(err)
		}
		if existing != "" && existing != p.ID {
			return Result{}, contracts.Conflict("vault path already in use")
		}
	}

	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}
	if err := env.Schemas.ValidateEntityMetadata(p.TypeName, metadata); err != nil {
		return Result{}, contracts.InvalidInput("metadata", err.Error())
	}
	scopeNames := env.Enums.NamesOf(scopeIDs)
	if err := validate.ValidateContextSegments(contextSegmentsOf(metadata), scopeNames); err != nil {
		return Result{}, err
	}

	after := before
	after.Name, after.TypeID, after.StatusID = p.Name, typeID, statusID
	after.ScopeIDs, after.Tags, after.Metadata, after.VaultPath = scopeIDs, p.Tags, metadata, p.VaultPath
	after.UpdatedAt = time.Now().UTC()

	if err := env.Store.UpdateEntity(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "entities", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeEntity, RecordID: after.ID}, nil
}

// bulkCreateEntities is a supplemented convenience executor: a thin loop
// over createEntity that skips failing items rather than aborting the
// whole batch on the first failure, matching the single-item executor the
// core otherwise exposes. Only the first item error is kept, and it is
// returned only when no item was created.
func bulkCreateEntities(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var items []json.RawMessage
	if err := decode(payload, &items); err != nil {
		return Result{}, err
	}
	var lastID string
	var firstErr error
	created := 0
	for _, item := range items {
		res, err := createEntity(ctx, env, item)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		lastID = res.RecordID
		created++
	}
	if created == 0 && firstErr != nil {
		return Result{}, firstErr
	}
	return Result{NodeType: contracts.NodeEntity, RecordID: lastID}, nil
}

type bulkTagsProposal struct {
	EntityIDs []string `json:"entity_ids"`
	Tags      []string `json:"tags"`
}

func bulkUpdateEntityTags(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p bulkTagsProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}
	now := time.Now().UTC()
	var lastID string
	for _, id := range p.EntityIDs {
		before, err := env.Store.EntityByID(ctx, env.Tx, id)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.UpdateEntityTags(ctx, env.Tx, id, p.Tags, now); err != nil {
			return Result{}, err
		}
		after := before
		after.Tags, after.UpdatedAt = p.Tags, now
		if _, err := env.Store.Ledger.Append(ctx, env.Tx, "entities", id, audit.ActionUpdate, before, after, env.Identity); err != nil {
			return Result{}, contracts.Internal(err)
		}
		lastID = id
	}
	return Result{NodeType: contracts.NodeEntity, RecordID: lastID}, nil
}

type bulkScopesProposal struct {
	EntityIDs []string `json:"entity_ids"`
	Scopes    []string `json:"scopes"`
}

func bulkUpdateEntityScopes(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p bulkScopesProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	scopeIDs, err := env.Enums.ResolveScopes(p.Scopes)
	if err != nil {
		return Result{}, contracts.InvalidInput("scopes", "unknown scope")
	}
	now := time.Now().UTC()
	var lastID string
	for _, id := range p.EntityIDs {
		before, err := env.Store.EntityByID(ctx, env.Tx, id)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.UpdateEntityScopes(ctx, env.Tx, id, scopeIDs, now); err != nil {
			return Result{}, err
		}
		after := before
		after.ScopeIDs, after.UpdatedAt = scopeIDs, now
		if _, err := env.Store.Ledger.Append(ctx, env.Tx, "entities", id, audit.ActionUpdate, before, after, env.Identity); err != nil {
			return Result{}, contracts.Internal(err)
		}
		lastID = id
	}
	return Result{NodeType: contracts.NodeEntity, RecordID: lastID}, nil
}

type revertProposal struct {
	EntityID  string `json:"entity_id"`
	AuditID   string `json:"audit_entry_id"`
}

// revertEntity loads the referenced audit row, verifies it describes the
// target entity's table, and rewrites the entity from whichever snapshot
// survives the action: new_data for create/update, old_data for delete.
// Only users may reach this executor directly; an untrusted agent may
// only request it through the approval engine.
func revertEntity(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p revertProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if env.Caller.IsAgent() && !env.Caller.Trusted {
		return Result{}, contracts.Forbidden("agents may only request reverts through the approval engine")
	}

	row, err := env.Store.Ledger.GetByEntryID(ctx, env.Tx, p.AuditID)
	if err != nil {
		return Result{}, err
	}
	if row.TableName != "entities" || row.RecordID != p.EntityID {
		return Result{}, contracts.InvalidInput("audit_entry_id", "audit row does not describe this entity")
	}

	snapshot := row.NewData
	if row.Action == "delete" {
		snapshot = row.OldData
	}
	if len(snapshot) == 0 {
		return Result{}, contracts.Conflict("referenced audit row has no usable snapshot")
	}

	var restored contracts.Entity
	if err := json.Unmarshal(snapshot, &restored); err != nil {
		return Result{}, contracts.Internal(err)
	}
	restored.ID = p.EntityID
	restored.UpdatedAt = time.Now().UTC()

	before, err := env.Store.EntityByID(ctx, env.Tx, p.EntityID)
	if err != nil {
		return Result{}, err
	}
	if err := env.Store.UpdateEntity(ctx, env.Tx, restored); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "entities", p.EntityID, audit.ActionUpdate, before, restored, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeEntity, RecordID: p.EntityID}, nil
}

func validateTags(tags []string) error {
	if len(tags) > contracts.MaxTags {
		return contracts.InvalidInput("tags", "too many tags")
	}
	for _, t := range tags {
		if len(t) > contracts.MaxTagLength {
			return contracts.InvalidInput("tags", "tag exceeds max length")
		}
	}
	return nil
}
