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

type knowledgeProposal struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	URL        string                 `json:"url"`
	SourceType string                 `json:"source_type"`
	Content    string                 `json:"content"`
	Scopes     []string               `json:"scopes"`
	Tags       []string               `json:"tags"`
	Metadata   map[string]interface{} `json:"metadata"`
	Status     string                 `json:"status"`
}

func createKnowledge(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p knowledgeProposal
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
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}
	if p.URL != "" {
		existing, err := env.Store.KnowledgeIDByURL(ctx, env.Tx, p.URL)
		if err != nil {
			return Result{}, contracts.Internal(err)
		}
		if existing != "" {
			return Result{}, contracts.Conflict("knowledge item with this URL already exists")
		}
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}
	scopeNames := env.Enums.NamesOf(scopeIDs)
	if err := validate.ValidateContextSegments(contextSegmentsOf(metadata), scopeNames); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	k := contracts.KnowledgeItem{
		ID: uuid.New().String(), Title: p.Title, URL: p.URL, SourceType: p.SourceType, Content: p.Content,
		ScopeIDs: scopeIDs, Tags: p.Tags, Metadata: metadata, StatusID: statusID,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertKnowledge(ctx, env.Tx, k); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "knowledge_items", k.ID, audit.ActionCreate, nil, k, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeKnowledge, RecordID: k.ID}, nil
}

func updateKnowledge(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p knowledgeProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.KnowledgeByID(ctx, env.Tx, p.ID)
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
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}
	if p.URL != "" && p.URL != before.URL {
		existing, err := env.Store.KnowledgeIDByURL(ctx, env.Tx, p.URL)
		if err != nil {
			return Result{}, contracts.Internal(err)
		}
		if existing != "" && existing != p.ID {
			return Result{}, contracts.Conflict("knowledge item with this URL already exists")
		}
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}
	scopeNames := env.Enums.NamesOf(scopeIDs)
	if err := validate.ValidateContextSegments(contextSegmentsOf(metadata), scopeNames); err != nil {
		return Result{}, err
	}

	after := before
	after.Title, after.URL, after.SourceType, after.Content = p.Title, p.URL, p.SourceType, p.Content
	after.ScopeIDs, after.Tags, after.Metadata, after.StatusID = scopeIDs, p.Tags, metadata, statusID
	after.UpdatedAt = time.Now().UTC()

	if err := env.Store.UpdateKnowledge(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "knowledge_items", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeKnowledge, RecordID: after.ID}, nil
}

// bulkCreateKnowledge mirrors bulkCreateEntities: a thin per-item loop
// over createKnowledge that skips failing items instead of aborting the
// whole batch, returning the first item error only when none was created.
func bulkCreateKnowledge(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var items []json.RawMessage
	if err := decode(payload, &items); err != nil {
		return Result{}, err
	}
	var lastID string
	var firstErr error
	created := 0
	for _, item := range items {
		res, err := createKnowledge(ctx, env, item)
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
	return Result{NodeType: contracts.NodeKnowledge, RecordID: lastID}, nil
}
