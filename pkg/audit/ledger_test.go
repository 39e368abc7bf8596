package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/querycat"
)

func newTestLedger(t *testing.T) (*Ledger, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := querycat.New()
	catalog.RegisterAll(querycat.Builtin()...)
	catalog.Seal()
	return NewLedger(catalog), db, mock
}

func TestLedger_Append_FirstRowChainsToGenesis(t *testing.T) {
	ledger, db, mock := newTestLedger(t)

	mock.ExpectQuery("SELECT entry_hash FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}))
	mock.ExpectQuery("SELECT sequence FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}))
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	identity := contracts.AuditIdentity{Kind: contracts.AuditKindUser, ID: "user-1"}
	row, err := ledger.Append(context.Background(), db, "entities", "ent-1", ActionCreate, nil, map[string]string{"name": "X"}, identity)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if row.PreviousHash != GenesisHash {
		t.Errorf("expected genesis previous hash, got %q", row.PreviousHash)
	}
	if row.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", row.Sequence)
	}
	if row.EntryHash == "" {
		t.Error("expected a non-empty entry hash")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLedger_Append_ChainsToPreviousHead(t *testing.T) {
	ledger, db, mock := newTestLedger(t)

	mock.ExpectQuery("SELECT entry_hash FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}).AddRow("sha256:deadbeef"))
	mock.ExpectQuery("SELECT sequence FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(7))
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	identity := contracts.AuditIdentity{Kind: contracts.AuditKindAgent, ID: "agent-1"}
	row, err := ledger.Append(context.Background(), db, "jobs", "job-1", ActionUpdate, map[string]string{"status": "open"}, map[string]string{"status": "closed"}, identity)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if row.PreviousHash != "sha256:deadbeef" {
		t.Errorf("expected chain to previous head, got %q", row.PreviousHash)
	}
	if row.Sequence != 8 {
		t.Errorf("expected sequence 8, got %d", row.Sequence)
	}
}

func TestVerifyChain_DetectsBrokenLink(t *testing.T) {
	now := time.Now().UTC()
	row1 := Row{EntryID: "a", Sequence: 1, TableName: "entities", RecordID: "e1", Action: ActionCreate, PreviousHash: GenesisHash, CreatedAt: now}
	h1, err := computeEntryHash(row1)
	if err != nil {
		t.Fatalf("computeEntryHash: %v", err)
	}
	row1.EntryHash = h1

	row2 := Row{EntryID: "b", Sequence: 2, TableName: "entities", RecordID: "e1", Action: ActionUpdate, PreviousHash: "tampered", CreatedAt: now}
	h2, err := computeEntryHash(row2)
	if err != nil {
		t.Fatalf("computeEntryHash: %v", err)
	}
	row2.EntryHash = h2

	if err := VerifyChain([]Row{row1, row2}); err == nil {
		t.Fatal("expected VerifyChain to detect the broken previous_hash link")
	}
}

func TestVerifyChain_ValidChainPasses(t *testing.T) {
	now := time.Now().UTC()
	row1 := Row{EntryID: "a", Sequence: 1, TableName: "entities", RecordID: "e1", Action: ActionCreate, PreviousHash: GenesisHash, CreatedAt: now}
	row1.EntryHash, _ = computeEntryHash(row1)

	row2 := Row{EntryID: "b", Sequence: 2, TableName: "entities", RecordID: "e1", Action: ActionUpdate, PreviousHash: row1.EntryHash, CreatedAt: now}
	row2.EntryHash, _ = computeEntryHash(row2)

	if err := VerifyChain([]Row{row1, row2}); err != nil {
		t.Errorf("expected valid chain to pass, got %v", err)
	}
}
