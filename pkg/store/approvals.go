package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) ApprovalByID(ctx context.Context, q Queryer, id string) (contracts.ApprovalRequest, error) {
	stmt := s.Catalog.MustGet("approvals/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanApproval(row)
}

// CountPendingForAgent is the P9-adjacent guard the approval engine
// consults before accepting a new request from an untrusted agent that
// already has too many requests outstanding.
func (s *Store) CountPendingForAgent(ctx context.Context, q Queryer, agentID string) (int, error) {
	stmt := s.Catalog.MustGet("approvals/count-pending-for-agent")
	var n int
	if err := q.QueryRowContext(ctx, stmt.SQL, agentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count pending approvals: %w", err)
	}
	return n, nil
}

func (s *Store) InsertApproval(ctx context.Context, q Queryer, a contracts.ApprovalRequest) error {
	stmt := s.Catalog.MustGet("approvals/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		a.ID, a.RequestType, a.RequestedByAgentID, []byte(a.ChangeDetails), nullString(a.RelatedJobID), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert approval: %w", err)
	}
	return nil
}

// ListPendingApprovals returns pending requests oldest-first, the order
// listPending presents them to a reviewer in.
func (s *Store) ListPendingApprovals(ctx context.Context, q Queryer, limit, offset int) ([]contracts.ApprovalRequest, error) {
	stmt := s.Catalog.MustGet("approvals/list-pending")
	rows, err := q.QueryContext(ctx, stmt.SQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list pending approvals: %w", err)
	}
	defer rows.Close()

	var out []contracts.ApprovalRequest
	for rows.Next() {
		var a contracts.ApprovalRequest
		var status string
		var changeDetails []byte
		var relatedJobID sql.NullString
		if err := rows.Scan(&a.ID, &a.RequestType, &a.RequestedByAgentID, &changeDetails, &status, &relatedJobID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan pending approval: %w", err)
		}
		a.Status = contracts.ApprovalStatus(status)
		a.ChangeDetails = json.RawMessage(changeDetails)
		a.RelatedJobID = relatedJobID.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// TransitionApproved moves a pending request to approved. The UPDATE's own
// status='pending' guard is what makes a concurrent double-approve a no-op
// rather than a race: only the caller that wins the row update sees
// RowsAffected() == 1.
func (s *Store) TransitionApproved(ctx context.Context, q Queryer, id, reviewerUserID string, reviewedAt interface{}, details *contracts.ReviewDetails) error {
	stmt := s.Catalog.MustGet("approvals/transition-approved")
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("store: marshal review details: %w", err)
		}
	}
	res, err := q.ExecContext(ctx, stmt.SQL, id, reviewerUserID, reviewedAt, detailsJSON)
	if err != nil {
		return fmt.Errorf("store: transition approval approved: %w", err)
	}
	return requireOneRow(res, "pending approval request")
}

func (s *Store) TransitionRejected(ctx context.Context, q Queryer, id, reviewerUserID string, reviewedAt interface{}, notes string) error {
	stmt := s.Catalog.MustGet("approvals/transition-rejected")
	res, err := q.ExecContext(ctx, stmt.SQL, id, reviewerUserID, reviewedAt, notes)
	if err != nil {
		return fmt.Errorf("store: transition approval rejected: %w", err)
	}
	return requireOneRow(res, "pending approval request")
}

func (s *Store) SetApprovalLinkedRecord(ctx context.Context, q Queryer, id, linkedRecordID string) error {
	stmt := s.Catalog.MustGet("approvals/set-linked-record")
	_, err := q.ExecContext(ctx, stmt.SQL, id, linkedRecordID)
	if err != nil {
		return fmt.Errorf("store: set approval linked record: %w", err)
	}
	return nil
}

func (s *Store) MarkApprovalFailed(ctx context.Context, q Queryer, id, execErr string, updatedAt interface{}) error {
	stmt := s.Catalog.MustGet("approvals/mark-failed")
	_, err := q.ExecContext(ctx, stmt.SQL, id, execErr, updatedAt)
	if err != nil {
		return fmt.Errorf("store: mark approval failed: %w", err)
	}
	return nil
}

func scanApproval(row *sql.Row) (contracts.ApprovalRequest, error) {
	var a contracts.ApprovalRequest
	var status string
	var changeDetails []byte
	var reviewedByUserID, reviewNotes, linkedRecordID, relatedJobID, executorError sql.NullString
	var reviewDetailsJSON []byte
	err := row.Scan(
		&a.ID, &a.RequestType, &a.RequestedByAgentID, &changeDetails, &status,
		&reviewedByUserID, &a.ReviewedAt, &reviewNotes, &reviewDetailsJSON,
		&linkedRecordID, &relatedJobID, &executorError, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return contracts.ApprovalRequest{}, contracts.NotFound("approval request")
	}
	if err != nil {
		return contracts.ApprovalRequest{}, fmt.Errorf("store: scan approval: %w", err)
	}
	a.Status = contracts.ApprovalStatus(status)
	a.ChangeDetails = json.RawMessage(changeDetails)
	a.ReviewedByUserID, a.ReviewNotes = reviewedByUserID.String, reviewNotes.String
	a.LinkedRecordID, a.RelatedJobID, a.ExecutorError = linkedRecordID.String, relatedJobID.String, executorError.String
	if len(reviewDetailsJSON) > 0 {
		var details contracts.ReviewDetails
		if err := json.Unmarshal(reviewDetailsJSON, &details); err != nil {
			return contracts.ApprovalRequest{}, fmt.Errorf("store: unmarshal review details: %w", err)
		}
		a.ReviewDetails = &details
	}
	return a, nil
}
