package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
)

type fileProposal struct {
	ID        string                 `json:"id"`
	Filename  string                 `json:"filename"`
	FilePath  string                 `json:"file_path"`
	MimeType  string                 `json:"mime_type"`
	SizeBytes int64                  `json:"size_bytes"`
	Checksum  string                 `json:"checksum"`
	Status    string                 `json:"status"`
	Tags      []string               `json:"tags"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func createFile(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p fileProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	f := contracts.File{
		ID: uuid.New().String(), Filename: p.Filename, FilePath: p.FilePath, MimeType: p.MimeType,
		SizeBytes: p.SizeBytes, Checksum: p.Checksum, StatusID: statusID, Tags: p.Tags, Metadata: metadata,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertFile(ctx, env.Tx, f); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "files", f.ID, audit.ActionCreate, nil, f, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeFile, RecordID: f.ID}, nil
}

func updateFile(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p fileProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.FileByID(ctx, env.Tx, p.ID)
	if err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}

	after := before
	after.Filename, after.MimeType, after.SizeBytes = p.Filename, p.MimeType, p.SizeBytes
	after.Checksum, after.StatusID, after.Tags, after.Metadata = p.Checksum, statusID, p.Tags, metadata
	after.UpdatedAt = time.Now().UTC()

	if err := env.Store.UpdateFile(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "files", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeFile, RecordID: after.ID}, nil
}
