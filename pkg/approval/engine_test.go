package approval

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/executor"
	"github.com/nebula-core/nebula/pkg/querycat"
	"github.com/nebula-core/nebula/pkg/ratelimit"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

type fakeLoader struct{}

func (fakeLoader) LoadTaxonomy(ctx context.Context, kind contracts.TaxonomyKind) ([]contracts.TaxonomyRow, error) {
	switch kind {
	case contracts.TaxonomyStatus:
		return []contracts.TaxonomyRow{
			{ID: "active", Name: "active", IsBuiltin: true},
			{ID: "inactive", Name: "inactive", IsBuiltin: true},
			{ID: "pending", Name: "pending", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyScope:
		return []contracts.TaxonomyRow{
			{ID: "scope-a", Name: "scope-a", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyLogType:
		return []contracts.TaxonomyRow{
			{ID: "event", Name: "event", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyEntityType:
		return []contracts.TaxonomyRow{{ID: "generic", Name: "generic", IsBuiltin: true}}, nil
	case contracts.TaxonomyRelationType:
		return []contracts.TaxonomyRow{{ID: "related-to", Name: "related-to", IsBuiltin: true}}, nil
	}
	return nil, nil
}

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := querycat.New()
	catalog.RegisterAll(querycat.Builtin()...)
	catalog.Seal()
	s := &store.Store{DB: db, Catalog: catalog, Ledger: audit.NewLedger(catalog)}

	reg, err := enums.Load(context.Background(), fakeLoader{})
	if err != nil {
		t.Fatalf("enums.Load: %v", err)
	}
	schemas, err := validate.NewSchemaRegistry()
	if err != nil {
		t.Fatalf("NewSchemaRegistry: %v", err)
	}

	return New(s, executor.NewRegistry(), reg, schemas, ratelimit.NewMemoryLimiter()), mock
}

func chainHeadEmpty(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT entry_hash FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}))
	mock.ExpectQuery("SELECT sequence FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}))
}

func expectAuditInsert(mock sqlmock.Sqlmock) {
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestCreate_UnknownActionRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Create(context.Background(), "agent-1", "delete_everything", json.RawMessage(`{}`), "")
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}

func TestCreate_RateLimited(t *testing.T) {
	eng, mock := newTestEngine(t)
	eng.MaxPending = 2
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	_, err := eng.Create(context.Background(), "agent-1", "create_log", json.RawMessage(`{}`), "")
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeRateLimited {
		t.Fatalf("expected CodeRateLimited, got %v", err)
	}
}

func TestCreate_InsertsPendingRequest(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO approval_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req, err := eng.Create(context.Background(), "agent-1", "create_log", json.RawMessage(`{"log_type":"event"}`), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != contracts.ApprovalPending || req.ID == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// approvalRow builds the row shape approvals/by-id returns for a single
// pending create_log request.
func approvalRow(id, requestType, agentID string, changeDetails []byte, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "request_type", "requested_by_agent_id", "change_details", "status",
		"reviewed_by_user_id", "reviewed_at", "review_notes", "review_details",
		"linked_record_id", "related_job_id", "executor_error", "created_at", "updated_at",
	}).AddRow(id, requestType, agentID, changeDetails, status, nil, nil, nil, nil, nil, nil, nil, now, now)
}

func TestApprove_HappyPath(t *testing.T) {
	eng, mock := newTestEngine(t)

	payload, _ := json.Marshal(map[string]interface{}{"log_type": "event", "status": "active", "value": map[string]interface{}{"n": 1}})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, request_type").
		WithArgs("req-1").
		WillReturnRows(approvalRow("req-1", "create_log", "agent-1", payload, "pending"))
	mock.ExpectExec("UPDATE approval_requests SET status='approved'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO logs").WillReturnResult(sqlmock.NewResult(1, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)
	mock.ExpectExec("UPDATE approval_requests SET linked_record_id").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	final, result, err := eng.Approve(context.Background(), "req-1", "reviewer-1", nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if final.Status != contracts.ApprovalApproved || result.RecordID == "" {
		t.Fatalf("unexpected approve result: %+v %+v", final, result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApprove_AlreadyProcessedConflict(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{"log_type": "event"})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, request_type").
		WithArgs("req-1").
		WillReturnRows(approvalRow("req-1", "create_log", "agent-1", payload, "approved"))
	mock.ExpectRollback()

	_, _, err := eng.Approve(context.Background(), "req-1", "reviewer-1", nil)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeConflict {
		t.Fatalf("expected CodeConflict, got %v", err)
	}
}

func TestApprove_NonRegisterAgentRejectsReviewDetails(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{"log_type": "event"})
	mock.ExpectQuery("SELECT id, request_type").
		WithArgs("req-1").
		WillReturnRows(approvalRow("req-1", "create_log", "agent-1", payload, "pending"))

	grant := true
	_, _, err := eng.Approve(context.Background(), "req-1", "reviewer-1", &contracts.ReviewDetails{GrantRequiresApproval: &grant})
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}

func TestReject_TransitionsToRejected(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{"log_type": "event"})

	mock.ExpectExec("UPDATE approval_requests SET status='rejected'").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, request_type").
		WillReturnRows(approvalRow("req-1", "create_log", "agent-1", payload, "rejected"))

	req, err := eng.Reject(context.Background(), "req-1", "reviewer-1", "not needed")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if req.Status != contracts.ApprovalRejected {
		t.Fatalf("expected rejected, got %v", req.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDiff_CreateProposalShowsEveryFieldAsNew(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{"name": "X", "status": "active"})
	mock.ExpectQuery("SELECT id, request_type").
		WillReturnRows(approvalRow("req-1", "create_protocol", "agent-1", payload, "pending"))

	diff, err := eng.Diff(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(diff.Changes), diff.Changes)
	}
	for field, delta := range diff.Changes {
		if delta.From != nil {
			t.Fatalf("field %s: expected nil From for a create proposal, got %s", field, delta.From)
		}
	}
}

func TestDiff_UpdateProposalComparesAgainstCurrentRecord(t *testing.T) {
	eng, mock := newTestEngine(t)
	payload, _ := json.Marshal(map[string]interface{}{"id": "log-1", "status": "active"})
	mock.ExpectQuery("SELECT id, request_type").
		WillReturnRows(approvalRow("req-1", "update_log", "agent-1", payload, "pending"))
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, log_type_id").
		WithArgs("log-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "log_type_id", "timestamp", "value", "status_id", "tags", "metadata", "created_at", "updated_at"}).
			AddRow("log-1", "event", now, "{}", "pending", "{}", "{}", now, now))

	diff, err := eng.Diff(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	delta, ok := diff.Changes["status"]
	if !ok {
		t.Fatalf("expected a status change, got %+v", diff.Changes)
	}
	if string(delta.From) != `"pending"` || string(delta.To) != `"active"` {
		t.Fatalf("unexpected status delta: %+v", delta)
	}
	if _, ok := diff.Changes["id"]; ok {
		t.Fatalf("id should be unchanged and absent from the diff")
	}
}
