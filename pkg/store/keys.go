package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// KeyByPrefix resolves an API key row by its public prefix, the O(1)
// lookup the authenticator uses before it does the expensive Argon2
// verification against HashedKey.
func (s *Store) KeyByPrefix(ctx context.Context, q Queryer, prefix string) (contracts.APIKey, error) {
	stmt := s.Catalog.MustGet("keys/by-prefix")
	row := q.QueryRowContext(ctx, stmt.SQL, prefix)
	return scanAPIKey(row)
}

func (s *Store) InsertKey(ctx context.Context, q Queryer, k contracts.APIKey) error {
	stmt := s.Catalog.MustGet("keys/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		k.ID, k.Prefix, k.HashedKey, nullString(k.EntityID), nullString(k.AgentID),
		stringSlice(k.ScopeIDs), k.ExpiresAt, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert key: %w", err)
	}
	return nil
}

func (s *Store) TouchKeyLastUsed(ctx context.Context, q Queryer, id string, lastUsedAt interface{}) error {
	stmt := s.Catalog.MustGet("keys/touch-last-used")
	_, err := q.ExecContext(ctx, stmt.SQL, id, lastUsedAt)
	if err != nil {
		return fmt.Errorf("store: touch key last used: %w", err)
	}
	return nil
}

func scanAPIKey(row *sql.Row) (contracts.APIKey, error) {
	var k contracts.APIKey
	var entityID, agentID sql.NullString
	var scopeIDs stringSlice
	err := row.Scan(&k.ID, &k.Prefix, &k.HashedKey, &entityID, &agentID, &scopeIDs, &k.Revoked, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return contracts.APIKey{}, contracts.NotFound("api key")
	}
	if err != nil {
		return contracts.APIKey{}, fmt.Errorf("store: scan api key: %w", err)
	}
	k.EntityID, k.AgentID, k.ScopeIDs = entityID.String, agentID.String, []string(scopeIDs)
	return k, nil
}
