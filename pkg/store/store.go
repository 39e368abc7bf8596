// Package store is the relational persistence layer: a thin typed wrapper
// over database/sql backed by Postgres (lib/pq) in production or
// modernc.org/sqlite for local development, addressing all of its SQL
// through pkg/querycat and recording every mutation through pkg/audit in
// the same transaction as the row it describes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nebula-core/nebula/pkg/audit"
	"github.com/nebula-core/nebula/pkg/querycat"
)

// Driver selects the underlying database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config configures connection acquisition. MaxOpenConns/MaxIdleConns
// bound the pool; ConnMaxLifetime recycles connections periodically so a
// long-lived pool doesn't accumulate connections the server-side load
// balancer has already dropped.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// StatementTimeout bounds every individual command; it is applied as
	// a context deadline by callers, not by the driver itself.
	StatementTimeout time.Duration
}

// Store is the handle every component above it (enums, scope, approval,
// executor) depends on for persistence. It owns the connection pool, the
// query catalog, and the audit ledger.
type Store struct {
	DB      *sql.DB
	Catalog *querycat.Catalog
	Ledger  *audit.Ledger
	cfg     Config
}

// Open establishes the pool, registers the built-in statement catalog,
// and returns a ready Store. It does not run migrations; schema
// provisioning is external to this package.
func Open(cfg Config) (*Store, error) {
	driverName := string(cfg.Driver)
	if cfg.Driver == DriverSQLite {
		driverName = "sqlite"
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	catalog := querycat.New()
	catalog.RegisterAll(querycat.Builtin()...)
	catalog.Seal()

	return &Store{
		DB:      db,
		Catalog: catalog,
		Ledger:  audit.NewLedger(catalog),
		cfg:     cfg,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping verifies connectivity, used by the health check route.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// WithTx runs fn inside a single transaction acquired from the pool,
// committing on success and rolling back on any error (including a
// panic, which is re-raised after rollback). The pool is acquired once
// per transaction, not per statement, so every statement fn issues
// shares one connection.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}
