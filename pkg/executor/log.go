package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
)

type logProposal struct {
	ID        string                 `json:"id"`
	LogType   string                 `json:"log_type"`
	Timestamp *time.Time             `json:"timestamp"`
	Value     map[string]interface{} `json:"value"`
	Status    string                 `json:"status"`
	Tags      []string               `json:"tags"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func createLog(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p logProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	logTypeID, err := env.Enums.ResolveLogType(p.LogType)
	if err != nil {
		return Result{}, contracts.InvalidInput("log_type", "unknown log type")
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	if err := validateTags(p.Tags); err != nil {
		return Result{}, err
	}
	value, err := rejectBannedAndSanitize(p.Value)
	if err != nil {
		return Result{}, err
	}
	if err := env.Schemas.ValidateLogValue(p.LogType, value); err != nil {
		return Result{}, contracts.InvalidInput("value", err.Error())
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	timestamp := now
	if p.Timestamp != nil {
		timestamp = *p.Timestamp
	}
	l := contracts.Log{
		ID: uuid.New().String(), LogTypeID: logTypeID, Timestamp: timestamp, Value: value,
		StatusID: statusID, Tags: p.Tags, Metadata: metadata, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertLog(ctx, env.Tx, l); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "logs", l.ID, audit.ActionCreate, nil, l, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeLog, RecordID: l.ID}, nil
}

func updateLog(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p logProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.LogByID(ctx, env.Tx, p.ID)
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
	value, err := rejectBannedAndSanitize(p.Value)
	if err != nil {
		return Result{}, err
	}
	logTypeName := p.LogType
	if err := env.Schemas.ValidateLogValue(logTypeName, value); err != nil {
		return Result{}, contracts.InvalidInput("value", err.Error())
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}

	after := before
	after.Value, after.StatusID, after.Tags, after.Metadata = value, statusID, p.Tags, metadata
	after.UpdatedAt = time.Now().UTC()

	if err := env.Store.UpdateLog(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "logs", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeLog, RecordID: after.ID}, nil
}
