package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) LogByID(ctx context.Context, q Queryer, id string) (contracts.Log, error) {
	stmt := s.Catalog.MustGet("logs/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanLog(row)
}

func (s *Store) InsertLog(ctx context.Context, q Queryer, l contracts.Log) error {
	stmt := s.Catalog.MustGet("logs/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		l.ID, l.LogTypeID, l.Timestamp, jsonObject(l.Value), l.StatusID, stringSlice(l.Tags),
		jsonObject(l.Metadata), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert log: %w", err)
	}
	return nil
}

func (s *Store) UpdateLog(ctx context.Context, q Queryer, l contracts.Log) error {
	stmt := s.Catalog.MustGet("logs/update")
	res, err := q.ExecContext(ctx, stmt.SQL, l.ID, jsonObject(l.Value), l.StatusID, stringSlice(l.Tags), jsonObject(l.Metadata), l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update log: %w", err)
	}
	return requireOneRow(res, "log")
}

func scanLog(row *sql.Row) (contracts.Log, error) {
	var l contracts.Log
	var value, metadata jsonObject
	var tags stringSlice
	err := row.Scan(&l.ID, &l.LogTypeID, &l.Timestamp, &value, &l.StatusID, &tags, &metadata, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.Log{}, contracts.NotFound("log")
	}
	if err != nil {
		return contracts.Log{}, fmt.Errorf("store: scan log: %w", err)
	}
	l.Value, l.Metadata, l.Tags = map[string]interface{}(value), map[string]interface{}(metadata), []string(tags)
	return l, nil
}
