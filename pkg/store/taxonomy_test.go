package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/contracts"
)

func TestLoadTaxonomy_Scopes(t *testing.T) {
	s, db, mock := newTestStore(t)
	s.DB = db

	mock.ExpectQuery("SELECT id, name, is_builtin FROM scopes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_builtin"}).
			AddRow("scope-1", "finance", true).
			AddRow("scope-2", "custom-team", false))

	rows, err := s.LoadTaxonomy(context.Background(), contracts.TaxonomyScope)
	if err != nil {
		t.Fatalf("LoadTaxonomy: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].IsBuiltin || rows[1].IsBuiltin {
		t.Errorf("unexpected is_builtin values: %+v", rows)
	}
}

func TestRenameTaxonomy_BuiltinRejected(t *testing.T) {
	s, db, mock := newTestStore(t)
	s.DB = db

	mock.ExpectExec("UPDATE scopes SET name").
		WithArgs("scope-1", "renamed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.RenameTaxonomy(context.Background(), contracts.TaxonomyScope, "scope-1", "renamed")
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeConflict {
		t.Fatalf("expected CodeConflict, got %v", err)
	}
}

func TestLoadTaxonomy_UnknownKind(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.LoadTaxonomy(context.Background(), contracts.TaxonomyKind("bogus")); err == nil {
		t.Fatal("expected an error for an unknown taxonomy kind")
	}
}
