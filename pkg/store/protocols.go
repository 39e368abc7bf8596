package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) ProtocolByID(ctx context.Context, q Queryer, id string) (contracts.Protocol, error) {
	stmt := s.Catalog.MustGet("protocols/by-id")
	return scanProtocol(q.QueryRowContext(ctx, stmt.SQL, id))
}

func (s *Store) ProtocolIDByName(ctx context.Context, q Queryer, name string) (string, error) {
	stmt := s.Catalog.MustGet("protocols/by-name")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: protocol by name: %w", err)
	}
	return id, nil
}

func (s *Store) InsertProtocol(ctx context.Context, q Queryer, p contracts.Protocol) error {
	stmt := s.Catalog.MustGet("protocols/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		p.ID, p.Name, p.Version, stringSlice(p.Steps), p.StatusID, stringSlice(p.ScopeIDs), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert protocol: %w", err)
	}
	return nil
}

func (s *Store) UpdateProtocol(ctx context.Context, q Queryer, p contracts.Protocol) error {
	stmt := s.Catalog.MustGet("protocols/update")
	res, err := q.ExecContext(ctx, stmt.SQL,
		p.ID, p.Name, p.Version, stringSlice(p.Steps), p.StatusID, stringSlice(p.ScopeIDs), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update protocol: %w", err)
	}
	return requireOneRow(res, "protocol")
}

func scanProtocol(row *sql.Row) (contracts.Protocol, error) {
	var p contracts.Protocol
	var steps, scopeIDs stringSlice
	err := row.Scan(&p.ID, &p.Name, &p.Version, &steps, &p.StatusID, &scopeIDs, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.Protocol{}, contracts.NotFound("protocol")
	}
	if err != nil {
		return contracts.Protocol{}, fmt.Errorf("store: scan protocol: %w", err)
	}
	p.Steps, p.ScopeIDs = []string(steps), []string(scopeIDs)
	return p, nil
}
