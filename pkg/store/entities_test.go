package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/contracts"
)

func TestEntityByID_Found(t *testing.T) {
	s, db, mock := newTestStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at FROM entities").
		WithArgs("ent-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type_id", "status_id", "scope_ids", "tags", "metadata", "vault_path", "created_at", "updated_at"}).
			AddRow("ent-1", "Ada", "person", "active", "{scope-a}", "{}", "{}", "", now, now))

	e, err := s.EntityByID(context.Background(), db, "ent-1")
	if err != nil {
		t.Fatalf("EntityByID: %v", err)
	}
	if e.Name != "Ada" {
		t.Errorf("expected name Ada, got %q", e.Name)
	}
	if len(e.ScopeIDs) != 1 || e.ScopeIDs[0] != "scope-a" {
		t.Errorf("expected scope_ids [scope-a], got %v", e.ScopeIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEntityByID_NotFound(t *testing.T) {
	s, db, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id, name, type_id, status_id, scope_ids, tags, metadata, vault_path, created_at, updated_at FROM entities").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type_id", "status_id", "scope_ids", "tags", "metadata", "vault_path", "created_at", "updated_at"}))

	_, err := s.EntityByID(context.Background(), db, "missing")
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestUpdateEntityTags_NoRowsAffected(t *testing.T) {
	s, db, mock := newTestStore(t)

	mock.ExpectExec("UPDATE entities SET tags").
		WithArgs("ent-1", "{a,b}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateEntityTags(context.Background(), db, "ent-1", []string{"a", "b"}, time.Now().UTC())
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestInsertEntity_Succeeds(t *testing.T) {
	s, db, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO entities").
		WillReturnResult(sqlmock.NewResult(1, 1))

	e := contracts.Entity{
		ID: "ent-2", Name: "Project X", TypeID: "project", StatusID: "active",
		ScopeIDs: []string{"scope-a"}, Tags: []string{"infra"},
		Metadata: map[string]interface{}{"repo_url": "https://example.test/x"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := s.InsertEntity(context.Background(), db, e); err != nil {
		t.Fatalf("InsertEntity: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
