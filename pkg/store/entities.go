package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting every
// resource method below run either standalone or inside a WithTx block.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) EntityByID(ctx context.Context, q Queryer, id string) (contracts.Entity, error) {
	stmt := s.Catalog.MustGet("entities/by-id")
	return scanEntity(q.QueryRowContext(ctx, stmt.SQL, id))
}

// EntitiesByIDs resolves a set of ids in one round trip, used by
// relationship and file-attachment lookups that need several entities at
// once. The %s ANY($1) array parameter is passed as a Postgres-array
// literal string so it works unmodified against lib/pq.
func (s *Store) EntitiesByIDs(ctx context.Context, q Queryer, ids []string) ([]contracts.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := s.Catalog.MustGet("entities/by-ids")
	rows, err := q.QueryContext(ctx, stmt.SQL, pqArrayLiteral(ids))
	if err != nil {
		return nil, fmt.Errorf("store: entities by ids: %w", err)
	}
	defer rows.Close()

	var out []contracts.Entity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) EntityIDByNameTypeScopes(ctx context.Context, q Queryer, name, typeID string, scopeIDs []string) (string, error) {
	stmt := s.Catalog.MustGet("entities/by-name-type-scopes")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, name, typeID, stringSlice(scopeIDs)).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: entity by name/type/scopes: %w", err)
	}
	return id, nil
}

func (s *Store) EntityIDByVaultPath(ctx context.Context, q Queryer, vaultPath string) (string, error) {
	stmt := s.Catalog.MustGet("entities/by-vault-path")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, vaultPath).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: entity by vault path: %w", err)
	}
	return id, nil
}

func (s *Store) InsertEntity(ctx context.Context, q Queryer, e contracts.Entity) error {
	stmt := s.Catalog.MustGet("entities/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		e.ID, e.Name, e.TypeID, e.StatusID, stringSlice(e.ScopeIDs), stringSlice(e.Tags),
		jsonObject(e.Metadata), e.VaultPath, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert entity: %w", err)
	}
	return nil
}

func (s *Store) UpdateEntity(ctx context.Context, q Queryer, e contracts.Entity) error {
	stmt := s.Catalog.MustGet("entities/update")
	res, err := q.ExecContext(ctx, stmt.SQL,
		e.ID, e.Name, e.TypeID, e.StatusID, stringSlice(e.ScopeIDs), stringSlice(e.Tags),
		jsonObject(e.Metadata), e.VaultPath, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update entity: %w", err)
	}
	return requireOneRow(res, "entity")
}

func (s *Store) UpdateEntityTags(ctx context.Context, q Queryer, id string, tags []string, updatedAt interface{}) error {
	stmt := s.Catalog.MustGet("entities/update-tags")
	res, err := q.ExecContext(ctx, stmt.SQL, id, stringSlice(tags), updatedAt)
	if err != nil {
		return fmt.Errorf("store: update entity tags: %w", err)
	}
	return requireOneRow(res, "entity")
}

func (s *Store) UpdateEntityScopes(ctx context.Context, q Queryer, id string, scopeIDs []string, updatedAt interface{}) error {
	stmt := s.Catalog.MustGet("entities/update-scopes")
	res, err := q.ExecContext(ctx, stmt.SQL, id, stringSlice(scopeIDs), updatedAt)
	if err != nil {
		return fmt.Errorf("store: update entity scopes: %w", err)
	}
	return requireOneRow(res, "entity")
}

// ListEntitiesByScopes returns entities whose scope_ids overlap scopeIDs,
// the access-controlled listing every read endpoint narrows to before
// pkg/scope's segment filtering runs on each row's metadata.
func (s *Store) ListEntitiesByScopes(ctx context.Context, q Queryer, scopeIDs []string, limit, offset int) ([]contracts.Entity, error) {
	stmt := s.Catalog.MustGet("entities/list-by-scopes")
	rows, err := q.QueryContext(ctx, stmt.SQL, pqArrayLiteral(scopeIDs), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()

	var out []contracts.Entity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntity(row *sql.Row) (contracts.Entity, error) {
	var e contracts.Entity
	var scopeIDs, tags stringSlice
	var metadata jsonObject
	err := row.Scan(&e.ID, &e.Name, &e.TypeID, &e.StatusID, &scopeIDs, &tags, &metadata, &e.VaultPath, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.Entity{}, contracts.NotFound("entity")
	}
	if err != nil {
		return contracts.Entity{}, fmt.Errorf("store: scan entity: %w", err)
	}
	e.ScopeIDs, e.Tags, e.Metadata = []string(scopeIDs), []string(tags), map[string]interface{}(metadata)
	return e, nil
}

func scanEntityRow(rows *sql.Rows) (contracts.Entity, error) {
	var e contracts.Entity
	var scopeIDs, tags stringSlice
	var metadata jsonObject
	if err := rows.Scan(&e.ID, &e.Name, &e.TypeID, &e.StatusID, &scopeIDs, &tags, &metadata, &e.VaultPath, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return contracts.Entity{}, fmt.Errorf("store: scan entity row: %w", err)
	}
	e.ScopeIDs, e.Tags, e.Metadata = []string(scopeIDs), []string(tags), map[string]interface{}(metadata)
	return e, nil
}

func requireOneRow(res sql.Result, kind string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return contracts.NotFound(kind)
	}
	return nil
}

// pqArrayLiteral renders ids as a Postgres array literal ({a,b,c}) for the
// ANY($1)/&& predicates used in entities/by-ids and
// entities/list-by-scopes; those predicates need the Postgres array type
// (see stringSlice in codec.go).
func pqArrayLiteral(ids []string) string {
	return "{" + strings.Join(ids, ",") + "}"
}
