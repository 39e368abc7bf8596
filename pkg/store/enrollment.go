package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) EnrollmentByID(ctx context.Context, q Queryer, id string) (contracts.EnrollmentSession, error) {
	stmt := s.Catalog.MustGet("enrollment/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanEnrollment(row)
}

// EnrollmentByApprovalRequestID looks up the session register_agent
// created, if any, so Engine.Approve can settle it at approval time
// without waiting for a poller to observe the transition. Returns
// contracts.ErrSessionNotFound when the approval request has no
// associated session (every request type other than register_agent).
func (s *Store) EnrollmentByApprovalRequestID(ctx context.Context, q Queryer, approvalRequestID string) (contracts.EnrollmentSession, error) {
	stmt := s.Catalog.MustGet("enrollment/by-approval-request")
	row := q.QueryRowContext(ctx, stmt.SQL, approvalRequestID)
	return scanEnrollment(row)
}

func (s *Store) InsertEnrollment(ctx context.Context, q Queryer, e contracts.EnrollmentSession) error {
	stmt := s.Catalog.MustGet("enrollment/insert")
	_, err := q.ExecContext(ctx, stmt.SQL, e.ID, e.AgentID, e.EnrollmentTokenHash, e.ApprovalRequestID, e.ExpiresAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert enrollment: %w", err)
	}
	return nil
}

func (s *Store) SetEnrollmentStatus(ctx context.Context, q Queryer, id string, status contracts.EnrollmentStatus) error {
	stmt := s.Catalog.MustGet("enrollment/set-status")
	_, err := q.ExecContext(ctx, stmt.SQL, id, string(status))
	if err != nil {
		return fmt.Errorf("store: set enrollment status: %w", err)
	}
	return nil
}

// RedeemEnrollment is the one-shot transition out of approved. Its own
// status='approved' guard means a second concurrent redeem sees
// RowsAffected() == 0 and gets ErrAlreadyRedeemed rather than silently
// double-activating the agent.
func (s *Store) RedeemEnrollment(ctx context.Context, q Queryer, id string) error {
	stmt := s.Catalog.MustGet("enrollment/redeem")
	res, err := q.ExecContext(ctx, stmt.SQL, id)
	if err != nil {
		return fmt.Errorf("store: redeem enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: redeem enrollment: %w", err)
	}
	if n == 0 {
		return contracts.ErrAlreadyRedeemed
	}
	return nil
}

func scanEnrollment(row *sql.Row) (contracts.EnrollmentSession, error) {
	var e contracts.EnrollmentSession
	var status string
	var approvalRequestID sql.NullString
	err := row.Scan(&e.ID, &e.AgentID, &e.EnrollmentTokenHash, &status, &approvalRequestID, &e.ExpiresAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return contracts.EnrollmentSession{}, contracts.ErrSessionNotFound
	}
	if err != nil {
		return contracts.EnrollmentSession{}, fmt.Errorf("store: scan enrollment: %w", err)
	}
	e.Status = contracts.EnrollmentStatus(status)
	e.ApprovalRequestID = approvalRequestID.String
	return e, nil
}
