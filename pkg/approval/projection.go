package approval

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// projectBefore returns the current-state projection Diff compares the
// proposal against. create_* and bulk_* proposals have no prior state, so
// projectBefore returns an empty map and every proposed key shows up as
// newly set. update_* proposals (and register_agent, which updates the
// pending agent it targets) are projected down to exactly the keys the
// proposal touches, so a field the reviewer never asked to change never
// shows up as a spurious delta.
func (e *Engine) projectBefore(ctx context.Context, req contracts.ApprovalRequest, after map[string]json.RawMessage) (map[string]interface{}, error) {
	if strings.HasPrefix(req.RequestType, "create_") || strings.HasPrefix(req.RequestType, "bulk_") {
		return map[string]interface{}{}, nil
	}

	idKey := "id"
	if req.RequestType == "register_agent" {
		idKey = "agent_id"
	}
	var id string
	if raw, ok := after[idKey]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if id == "" {
		return map[string]interface{}{}, nil
	}

	full, err := e.loadCurrent(ctx, req.RequestType, id)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return map[string]interface{}{}, nil
	}

	projected := make(map[string]interface{}, len(after))
	for k := range after {
		if v, ok := full[k]; ok {
			projected[k] = v
		}
	}
	return projected, nil
}

// loadCurrent fetches the record requestType targets and projects it to
// the field names the corresponding proposal type uses. Types whose
// current value can't be resolved generically (status and entity/log
// type names are stored as enum ids, not names) are projected as their
// raw id rather than left out of the diff entirely.
func (e *Engine) loadCurrent(ctx context.Context, requestType, id string) (map[string]interface{}, error) {
	q := e.Store.DB
	switch {
	case strings.HasPrefix(requestType, "update_entity") || requestType == "revert_entity":
		rec, err := e.Store.EntityByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "name": rec.Name, "type": rec.TypeID, "status": rec.StatusID,
			"scopes": e.Enums.NamesOf(rec.ScopeIDs), "tags": rec.Tags, "metadata": rec.Metadata,
			"vault_path": rec.VaultPath,
		}, nil

	case requestType == "update_knowledge":
		rec, err := e.Store.KnowledgeByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "title": rec.Title, "url": rec.URL, "source_type": rec.SourceType,
			"content": rec.Content, "scopes": e.Enums.NamesOf(rec.ScopeIDs), "tags": rec.Tags,
			"metadata": rec.Metadata, "status": rec.StatusID,
		}, nil

	case requestType == "update_relationship":
		rec, err := e.Store.RelationshipByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "type": rec.TypeID, "status": rec.StatusID, "properties": rec.Properties,
		}, nil

	case requestType == "update_job" || requestType == "update_job_status":
		rec, err := e.Store.JobByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "title": rec.Title, "description": rec.Description, "job_type": rec.JobType,
			"assignee_user_id": rec.AssigneeUserID, "agent_id": rec.AgentID, "status": rec.StatusID,
			"priority": rec.Priority, "parent_job_id": rec.ParentJobID, "metadata": rec.Metadata,
		}, nil

	case requestType == "update_log":
		rec, err := e.Store.LogByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "type": rec.LogTypeID, "value": rec.Value, "status": rec.StatusID,
			"tags": rec.Tags, "metadata": rec.Metadata,
		}, nil

	case requestType == "update_file":
		rec, err := e.Store.FileByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "filename": rec.Filename, "status": rec.StatusID, "tags": rec.Tags,
			"metadata": rec.Metadata,
		}, nil

	case requestType == "update_protocol":
		rec, err := e.Store.ProtocolByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"id": rec.ID, "name": rec.Name, "version": rec.Version, "steps": rec.Steps,
			"status": rec.StatusID, "scopes": e.Enums.NamesOf(rec.ScopeIDs),
		}, nil

	case requestType == "register_agent":
		rec, err := e.Store.AgentByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"agent_id": rec.ID, "scopes": e.Enums.NamesOf(rec.OwnerScopeIDs),
			"requires_approval": rec.RequiresApproval,
		}, nil
	}
	return nil, nil
}
