package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) KnowledgeByID(ctx context.Context, q Queryer, id string) (contracts.KnowledgeItem, error) {
	stmt := s.Catalog.MustGet("knowledge/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanKnowledge(row)
}

func (s *Store) KnowledgeIDByURL(ctx context.Context, q Queryer, url string) (string, error) {
	stmt := s.Catalog.MustGet("knowledge/by-url")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, url).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: knowledge by url: %w", err)
	}
	return id, nil
}

func (s *Store) InsertKnowledge(ctx context.Context, q Queryer, k contracts.KnowledgeItem) error {
	stmt := s.Catalog.MustGet("knowledge/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		k.ID, k.Title, k.URL, k.SourceType, k.Content, stringSlice(k.ScopeIDs), stringSlice(k.Tags),
		jsonObject(k.Metadata), k.StatusID, k.CreatedAt, k.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert knowledge: %w", err)
	}
	return nil
}

func (s *Store) UpdateKnowledge(ctx context.Context, q Queryer, k contracts.KnowledgeItem) error {
	stmt := s.Catalog.MustGet("knowledge/update")
	res, err := q.ExecContext(ctx, stmt.SQL,
		k.ID, k.Title, k.URL, k.SourceType, k.Content, stringSlice(k.ScopeIDs), stringSlice(k.Tags),
		jsonObject(k.Metadata), k.StatusID, k.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update knowledge: %w", err)
	}
	return requireOneRow(res, "knowledge item")
}

func scanKnowledge(row *sql.Row) (contracts.KnowledgeItem, error) {
	var k contracts.KnowledgeItem
	var scopeIDs, tags stringSlice
	var metadata jsonObject
	err := row.Scan(&k.ID, &k.Title, &k.URL, &k.SourceType, &k.Content, &scopeIDs, &tags, &metadata, &k.StatusID, &k.CreatedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.KnowledgeItem{}, contracts.NotFound("knowledge item")
	}
	if err != nil {
		return contracts.KnowledgeItem{}, fmt.Errorf("store: scan knowledge: %w", err)
	}
	k.ScopeIDs, k.Tags, k.Metadata = []string(scopeIDs), []string(tags), map[string]interface{}(metadata)
	return k, nil
}
