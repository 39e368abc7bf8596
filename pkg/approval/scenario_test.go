package approval

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/auth"
	"github.com/nebula-core/nebula/pkg/contracts"
)

// TestScenario_ApproveHappyPath covers approving a pending create_entity
// request: the produced entity id links onto the approval row.
func TestScenario_ApproveHappyPath(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{
		"name": "X", "type": "generic", "status": "active", "scopes": []string{"scope-a"},
	})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, request_type").
		WithArgs("req-1").
		WillReturnRows(approvalRow("req-1", "create_entity", "agent-u", payload, "pending"))
	mock.ExpectExec("UPDATE approval_requests SET status='approved'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM entities WHERE name").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO entities").WillReturnResult(sqlmock.NewResult(1, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)
	mock.ExpectExec("UPDATE approval_requests SET linked_record_id").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	final, result, err := eng.Approve(context.Background(), "req-1", "reviewer-1", nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if final.LinkedRecordID != result.RecordID || result.RecordID == "" {
		t.Fatalf("expected linked record id to match the created entity, got %+v / %+v", final, result)
	}
}

// TestScenario_ApproveFailsValidation covers a pending request whose
// proposal fails executor validation (here, an unknown entity type):
// it transitions to approved-failed and never creates a row.
func TestScenario_ApproveFailsValidation(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{
		"name": "X", "type": "INVALID", "status": "active", "scopes": []string{"scope-a"},
	})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, request_type").
		WithArgs("req-1").
		WillReturnRows(approvalRow("req-1", "create_entity", "agent-u", payload, "pending"))
	mock.ExpectExec("UPDATE approval_requests SET status='approved'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()
	mock.ExpectExec("UPDATE approval_requests SET status='approved-failed'").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, _, err := eng.Approve(context.Background(), "req-1", "reviewer-1", nil)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations (approved-failed transition must still run after rollback): %v", err)
	}
}

// TestScenario_Enrollment covers the full enrollment lifecycle:
// enrollStart issues a one-time token, a reviewer approves the
// register_agent request with a scope grant, enrollWait reports the session
// approved and redeemable, enrollRedeem mints a key, and a second redeem of
// the same token is rejected.
func TestScenario_Enrollment(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT id FROM agents WHERE name").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO agents").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO approval_requests").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollment_sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)
	mock.ExpectCommit()

	start, err := eng.EnrollStart(context.Background(), "mcp-x", []string{"scope-a"}, true, nil)
	if err != nil {
		t.Fatalf("EnrollStart: %v", err)
	}
	if start.EnrollmentToken == "" || start.RegistrationID == "" {
		t.Fatalf("unexpected start result: %+v", start)
	}

	tokenHash, err := auth.HashCredential(start.EnrollmentToken)
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	now := time.Now().UTC()
	sessionRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "agent_id", "enrollment_token_hash", "status", "approval_request_id", "expires_at", "created_at",
		}).AddRow(start.RegistrationID, "agent-new", tokenHash, "pending_approval", "req-1", now.Add(time.Hour), now)
	}
	approvedRow := func() *sqlmock.Rows {
		grantDetails, _ := json.Marshal(contracts.ReviewDetails{GrantScopes: []string{"scope-a"}})
		return sqlmock.NewRows([]string{
			"id", "request_type", "requested_by_agent_id", "change_details", "status",
			"reviewed_by_user_id", "reviewed_at", "review_notes", "review_details",
			"linked_record_id", "related_job_id", "executor_error", "created_at", "updated_at",
		}).AddRow("req-1", "register_agent", "agent-new", []byte(`{"agent_id":"agent-new"}`), "approved",
			"reviewer-1", now, nil, grantDetails, "agent-new", nil, nil, now, now)
	}

	// enrollWait observes the approval already terminal (approved) and
	// settles the session to approved.
	mock.ExpectQuery("SELECT id, agent_id, enrollment_token_hash").WillReturnRows(sessionRow())
	mock.ExpectQuery("SELECT id, request_type").WithArgs("req-1").WillReturnRows(approvedRow())
	mock.ExpectExec("UPDATE enrollment_sessions SET status").WillReturnResult(sqlmock.NewResult(1, 1))

	wait, err := eng.EnrollWait(context.Background(), start.RegistrationID, start.EnrollmentToken, 1)
	if err != nil {
		t.Fatalf("EnrollWait: %v", err)
	}
	if wait.Status != contracts.EnrollmentApproved || !wait.CanRedeem {
		t.Fatalf("expected approved+redeemable, got %+v", wait)
	}

	// enrollRedeem: session is now approved in the store's eyes.
	approvedSessionRow := sqlmock.NewRows([]string{
		"id", "agent_id", "enrollment_token_hash", "status", "approval_request_id", "expires_at", "created_at",
	}).AddRow(start.RegistrationID, "agent-new", tokenHash, "approved", "req-1", now.Add(time.Hour), now)
	mock.ExpectQuery("SELECT id, agent_id, enrollment_token_hash").WillReturnRows(approvedSessionRow)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE enrollment_sessions SET status='redeemed'").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, name, description").
		WithArgs("agent-new").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "owner_scope_ids", "capabilities", "requires_approval", "status_id", "created_at", "updated_at"}).
			AddRow("agent-new", "mcp-x", "", "{scope-a}", "{}", false, "active", now, now))
	mock.ExpectExec("INSERT INTO keys").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	redeemed, err := eng.EnrollRedeem(context.Background(), start.RegistrationID, start.EnrollmentToken)
	if err != nil {
		t.Fatalf("EnrollRedeem: %v", err)
	}
	if redeemed.APIKey == "" || redeemed.AgentID != "agent-new" {
		t.Fatalf("unexpected redeem result: %+v", redeemed)
	}

	// A second redeem of the same session (now redeemed) fails.
	redeemedSessionRow := sqlmock.NewRows([]string{
		"id", "agent_id", "enrollment_token_hash", "status", "approval_request_id", "expires_at", "created_at",
	}).AddRow(start.RegistrationID, "agent-new", tokenHash, "redeemed", "req-1", now.Add(time.Hour), now)
	mock.ExpectQuery("SELECT id, agent_id, enrollment_token_hash").WillReturnRows(redeemedSessionRow)

	_, err = eng.EnrollRedeem(context.Background(), start.RegistrationID, start.EnrollmentToken)
	if err == nil {
		t.Fatal("expected the second redeem to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
