package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/querycat"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

func newTestEnv(t *testing.T) (*Env, sqlmock.Sqlmock) {
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

	registry, err := enums.Load(context.Background(), fakeLoader{})
	if err != nil {
		t.Fatalf("enums.Load: %v", err)
	}
	schemas, err := validate.NewSchemaRegistry()
	if err != nil {
		t.Fatalf("NewSchemaRegistry: %v", err)
	}

	return &Env{
		Store:   s,
		Tx:      db,
		Enums:   registry,
		Schemas: schemas,
		Identity: contracts.AuditIdentity{
			Kind: contracts.AuditKindUser,
			ID:   "user-1",
		},
		Caller: contracts.Caller{Kind: contracts.CallerUser, UserID: "user-1", Trusted: true},
	}, mock
}

type fakeLoader struct{}

func (fakeLoader) LoadTaxonomy(ctx context.Context, kind contracts.TaxonomyKind) ([]contracts.TaxonomyRow, error) {
	switch kind {
	case contracts.TaxonomyStatus:
		return []contracts.TaxonomyRow{
			{ID: "active", Name: "active", IsBuiltin: true},
			{ID: "pending", Name: "pending", IsBuiltin: true},
			{ID: "completed", Name: "completed", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyScope:
		return []contracts.TaxonomyRow{
			{ID: "scope-a", Name: "scope-a", IsBuiltin: true},
			{ID: "scope-b", Name: "scope-b", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyEntityType:
		return []contracts.TaxonomyRow{
			{ID: "generic", Name: "generic", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyRelationType:
		return []contracts.TaxonomyRow{
			{ID: "related-to", Name: "related-to", IsBuiltin: true},
		}, nil
	case contracts.TaxonomyLogType:
		return []contracts.TaxonomyRow{
			{ID: "event", Name: "event", IsBuiltin: true},
		}, nil
	}
	return nil, nil
}

func chainHeadEmpty(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT entry_hash FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}))
	mock.ExpectQuery("SELECT sequence FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}))
}

func expectAuditInsert(mock sqlmock.Sqlmock) {
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestCreateEntity_HappyPath(t *testing.T) {
	env, mock := newTestEnv(t)

	mock.ExpectQuery("SELECT id FROM entities WHERE vault_path").
		WithArgs("agents/foo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id FROM entities WHERE name").
		WithArgs("Ada", "generic", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO entities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)

	payload, _ := json.Marshal(map[string]interface{}{
		"name": "Ada", "type": "generic", "status": "active",
		"scopes": []string{"scope-a"}, "vault_path": "agents/foo",
	})
	res, err := createEntity(context.Background(), env, payload)
	if err != nil {
		t.Fatalf("createEntity: %v", err)
	}
	if res.NodeType != contracts.NodeEntity || res.RecordID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateEntity_VaultPathConflict(t *testing.T) {
	env, mock := newTestEnv(t)

	mock.ExpectQuery("SELECT id FROM entities WHERE vault_path").
		WithArgs("agents/foo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ent-existing"))

	payload, _ := json.Marshal(map[string]interface{}{
		"name": "Ada", "type": "generic", "status": "active",
		"scopes": []string{"scope-a"}, "vault_path": "agents/foo",
	})
	_, err := createEntity(context.Background(), env, payload)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeConflict {
		t.Fatalf("expected CodeConflict, got %v", err)
	}
}

func TestCreateEntity_PathTraversalRejected(t *testing.T) {
	env, _ := newTestEnv(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"name": "Ada", "type": "generic", "status": "active",
		"scopes": []string{"scope-a"}, "vault_path": "../../etc/passwd",
	})
	_, err := createEntity(context.Background(), env, payload)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}

func TestCreateEntity_BannedMetadataKeyRejected(t *testing.T) {
	env, mock := newTestEnv(t)
	mock.ExpectQuery("SELECT id FROM entities WHERE name").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	payload, _ := json.Marshal(map[string]interface{}{
		"name": "Ada", "type": "generic", "status": "active",
		"scopes": []string{"scope-a"},
		"metadata": map[string]interface{}{
			"__proto__": "x",
		},
	})
	_, err := createEntity(context.Background(), env, payload)
	if err == nil {
		t.Fatal("expected banned key rejection, got nil")
	}
}

func TestCreateEntity_UnknownStatusRejected(t *testing.T) {
	env, _ := newTestEnv(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"name": "Ada", "type": "generic", "status": "nonexistent",
		"scopes": []string{"scope-a"},
	})
	_, err := createEntity(context.Background(), env, payload)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}

func TestRevertEntity_UntrustedAgentForbidden(t *testing.T) {
	env, _ := newTestEnv(t)
	env.Caller = contracts.Caller{Kind: contracts.CallerAgent, AgentID: "agent-1", Trusted: false}

	payload, _ := json.Marshal(map[string]interface{}{
		"entity_id": "ent-1", "audit_entry_id": "entry-1",
	})
	_, err := revertEntity(context.Background(), env, payload)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeForbidden {
		t.Fatalf("expected CodeForbidden, got %v", err)
	}
}

func TestRevertEntity_RestoresFromAuditSnapshot(t *testing.T) {
	env, mock := newTestEnv(t)

	now := time.Now().UTC()
	snapshot := contracts.Entity{
		ID: "ent-1", Name: "Restored", TypeID: "generic", StatusID: "active",
		ScopeIDs: []string{"scope-a"}, CreatedAt: now, UpdatedAt: now,
	}
	newData, _ := json.Marshal(snapshot)

	mock.ExpectQuery("SELECT entry_id, sequence, table_name, record_id, action, old_data, new_data, payload_hash, previous_hash, entry_hash, changed_by_type, changed_by_id, created_at FROM audit_log WHERE entry_id").
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"entry_id", "sequence", "table_name", "record_id", "action", "old_data", "new_data",
			"payload_hash", "previous_hash", "entry_hash", "changed_by_type", "changed_by_id", "created_at",
		}).AddRow("entry-1", 1, "entities", "ent-1", "update", nil, string(newData), "hash", "prev", "entryhash", "user", "user-1", now))

	mock.ExpectQuery("SELECT id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at FROM entities").
		WithArgs("ent-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "type_id", "status_id", "scope_ids", "tags", "metadata", "vault_path", "created_at", "updated_at",
		}).AddRow("ent-1", "Before", "generic", "active", "{scope-a}", "{}", "{}", "", now, now))

	mock.ExpectExec("UPDATE entities SET name").
		WillReturnResult(sqlmock.NewResult(0, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)

	payload, _ := json.Marshal(map[string]interface{}{
		"entity_id": "ent-1", "audit_entry_id": "entry-1",
	})
	res, err := revertEntity(context.Background(), env, payload)
	if err != nil {
		t.Fatalf("revertEntity: %v", err)
	}
	if res.RecordID != "ent-1" {
		t.Fatalf("expected record id ent-1, got %q", res.RecordID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRevertEntity_WrongRecordRejected(t *testing.T) {
	env, mock := newTestEnv(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT entry_id, sequence, table_name, record_id, action, old_data, new_data, payload_hash, previous_hash, entry_hash, changed_by_type, changed_by_id, created_at FROM audit_log WHERE entry_id").
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"entry_id", "sequence", "table_name", "record_id", "action", "old_data", "new_data",
			"payload_hash", "previous_hash", "entry_hash", "changed_by_type", "changed_by_id", "created_at",
		}).AddRow("entry-1", 1, "entities", "ent-other", "update", nil, "{}", "hash", "prev", "entryhash", "user", "user-1", now))

	payload, _ := json.Marshal(map[string]interface{}{
		"entity_id": "ent-1", "audit_entry_id": "entry-1",
	})
	_, err := revertEntity(context.Background(), env, payload)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}

func TestBulkCreateEntities_CollectsPartialFailure(t *testing.T) {
	env, mock := newTestEnv(t)

	// First item: succeeds (no vault_path set, so no vault uniqueness query).
	mock.ExpectQuery("SELECT id FROM entities WHERE name").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO entities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)

	good, _ := json.Marshal(map[string]interface{}{
		"name": "Good", "type": "generic", "status": "active", "scopes": []string{"scope-a"},
	})
	bad, _ := json.Marshal(map[string]interface{}{
		"name": "Bad", "type": "generic", "status": "no-such-status", "scopes": []string{"scope-a"},
	})
	items, _ := json.Marshal([]json.RawMessage{good, bad})

	res, err := bulkCreateEntities(context.Background(), env, items)
	if err != nil {
		t.Fatalf("bulkCreateEntities: %v", err)
	}
	if res.RecordID == "" {
		t.Fatal("expected the successful item's id to surface")
	}
}

func TestBulkCreateEntities_AllFailReturnsError(t *testing.T) {
	env, _ := newTestEnv(t)

	bad, _ := json.Marshal(map[string]interface{}{
		"name": "Bad", "type": "generic", "status": "no-such-status", "scopes": []string{"scope-a"},
	})
	items, _ := json.Marshal([]json.RawMessage{bad})

	_, err := bulkCreateEntities(context.Background(), env, items)
	if err == nil {
		t.Fatal("expected an error when every item fails")
	}
}

func TestNextJobID_NoPriorRowsStartsAtOne(t *testing.T) {
	env, mock := newTestEnv(t)

	mock.ExpectQuery("SELECT id FROM jobs WHERE id LIKE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	id, err := nextJobID(context.Background(), env, now)
	if err != nil {
		t.Fatalf("nextJobID: %v", err)
	}
	if id != contracts.QuarterPrefix(now)+"-0001" {
		t.Fatalf("expected suffix 0001, got %q", id)
	}
}

func TestNextJobID_IncrementsBase36Suffix(t *testing.T) {
	env, mock := newTestEnv(t)

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	prefix := contracts.QuarterPrefix(now)
	mock.ExpectQuery("SELECT id FROM jobs WHERE id LIKE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(prefix + "-00Z9"))

	id, err := nextJobID(context.Background(), env, now)
	if err != nil {
		t.Fatalf("nextJobID: %v", err)
	}
	if id != prefix+"-00ZA" {
		t.Fatalf("expected suffix 00ZA, got %q", id)
	}
}

func TestRegisterAgent_AppliesReviewerGrantsAndMintsKey(t *testing.T) {
	env, mock := newTestEnv(t)
	env.ReviewDetails = &contracts.ReviewDetails{GrantScopes: []string{"scope-b"}}

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, name, description, owner_scope_ids, capabilities, requires_approval, status_id, created_at, updated_at FROM agents").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "owner_scope_ids", "capabilities", "requires_approval", "status_id", "created_at", "updated_at",
		}).AddRow("agent-1", "bot", "", "{scope-a}", "{}", true, "pending", now, now))

	mock.ExpectExec("UPDATE agents SET status_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO api_keys").
		WillReturnResult(sqlmock.NewResult(1, 1))
	chainHeadEmpty(mock)
	expectAuditInsert(mock)

	payload, _ := json.Marshal(map[string]interface{}{"agent_id": "agent-1"})
	res, err := registerAgent(context.Background(), env, payload)
	if err != nil {
		t.Fatalf("registerAgent: %v", err)
	}
	if res.Secret == "" {
		t.Fatal("expected a freshly minted raw secret")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
