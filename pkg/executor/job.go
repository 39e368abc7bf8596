package executor

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
)

type jobProposal struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	JobType        string                 `json:"job_type"`
	AssigneeUserID string                 `json:"assignee_user_id"`
	AgentID        string                 `json:"agent_id"`
	Status         string                 `json:"status"`
	Priority       contracts.Priority     `json:"priority"`
	ParentJobID    string                 `json:"parent_job_id"`
	DueAt          *time.Time             `json:"due_at"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func createJob(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p jobProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	if !contracts.ValidPriority(p.Priority) {
		return Result{}, contracts.InvalidInput("priority", "invalid priority")
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	id, err := nextJobID(ctx, env, now)
	if err != nil {
		return Result{}, err
	}
	j := contracts.Job{
		ID: id, Title: p.Title, Description: p.Description, JobType: p.JobType,
		AssigneeUserID: p.AssigneeUserID, AgentID: p.AgentID, StatusID: statusID, Priority: p.Priority,
		ParentJobID: p.ParentJobID, DueAt: p.DueAt, Metadata: metadata, CreatedAt: now, UpdatedAt: now,
	}
	if err := env.Store.InsertJob(ctx, env.Tx, j); err != nil {
		return Result{}, contracts.Internal(err)
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "jobs", j.ID, audit.ActionCreate, nil, j, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeJob, RecordID: j.ID}, nil
}

func updateJob(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p jobProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	if p.ID == "" {
		return Result{}, contracts.InvalidInput("id", "required")
	}
	before, err := env.Store.JobByID(ctx, env.Tx, p.ID)
	if err != nil {
		return Result{}, err
	}
	if p.AgentID != "" && p.AgentID != before.AgentID {
		return Result{}, contracts.InvalidInput("agent_id", "a job's owning agent is immutable once set")
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}
	if !contracts.ValidPriority(p.Priority) {
		return Result{}, contracts.InvalidInput("priority", "invalid priority")
	}
	metadata, err := rejectBannedAndSanitize(p.Metadata)
	if err != nil {
		return Result{}, err
	}

	after := before
	after.Title, after.Description, after.JobType = p.Title, p.Description, p.JobType
	after.AssigneeUserID, after.StatusID, after.Priority = p.AssigneeUserID, statusID, p.Priority
	after.ParentJobID, after.DueAt, after.Metadata = p.ParentJobID, p.DueAt, metadata
	after.UpdatedAt = time.Now().UTC()

	if err := env.Store.UpdateJob(ctx, env.Tx, after); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "jobs", after.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeJob, RecordID: after.ID}, nil
}

type jobStatusProposal struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func updateJobStatus(ctx context.Context, env *Env, payload json.RawMessage) (Result, error) {
	var p jobStatusProposal
	if err := decode(payload, &p); err != nil {
		return Result{}, err
	}
	before, err := env.Store.JobByID(ctx, env.Tx, p.ID)
	if err != nil {
		return Result{}, err
	}
	statusID, err := env.Enums.ResolveStatus(p.Status)
	if err != nil {
		return Result{}, contracts.InvalidInput("status", "unknown status")
	}

	now := time.Now().UTC()
	var completedAt interface{}
	after := before
	after.StatusID, after.UpdatedAt = statusID, now
	if p.Status == "completed" {
		completedAt = now
		after.CompletedAt = &now
	}
	if err := env.Store.UpdateJobStatus(ctx, env.Tx, p.ID, statusID, completedAt, now); err != nil {
		return Result{}, err
	}
	if _, err := env.Store.Ledger.Append(ctx, env.Tx, "jobs", p.ID, audit.ActionUpdate, before, after, env.Identity); err != nil {
		return Result{}, contracts.Internal(err)
	}
	return Result{NodeType: contracts.NodeJob, RecordID: p.ID}, nil
}

// nextJobID derives the "YYYYQ#-NNNN" id for a new job: the current
// quarter prefix plus the base36 successor of the highest existing
// suffix for that quarter, zero-padded to 4 characters.
func nextJobID(ctx context.Context, env *Env, now time.Time) (string, error) {
	prefix := contracts.QuarterPrefix(now)
	maxID, err := env.Store.MaxJobSuffixForQuarter(ctx, env.Tx, prefix)
	if err != nil {
		return "", contracts.Internal(err)
	}
	next := int64(1)
	if maxID != "" {
		parts := maxID[len(prefix)+1:]
		n, ok := new(big.Int).SetString(parts, 36)
		if ok {
			next = n.Int64() + 1
		}
	}
	suffix := strings.ToUpper(new(big.Int).SetInt64(next).Text(36))
	for len(suffix) < 4 {
		suffix = "0" + suffix
	}
	return prefix + "-" + suffix, nil
}
