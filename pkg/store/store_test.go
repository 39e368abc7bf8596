package store

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/querycat"
)

func newTestStore(t *testing.T) (*Store, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := querycat.New()
	catalog.RegisterAll(querycat.Builtin()...)
	catalog.Seal()

	return &Store{DB: db, Catalog: catalog}, db, mock
}
