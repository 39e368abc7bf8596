package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) RelationshipByID(ctx context.Context, q Queryer, id string) (contracts.Relationship, error) {
	stmt := s.Catalog.MustGet("relationships/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanRelationship(row)
}

// RelationshipEndpoint is the narrow projection relationships/by-endpoint
// returns: enough to drive pkg/scope's relationshipEndpointCheck and
// pkg/store's fileVisibility without a full row scan.
type RelationshipEndpoint struct {
	SourceType contracts.NodeType
	SourceID   string
	TargetType contracts.NodeType
	TargetID   string
	TypeID     string
}

// RelationshipsByEndpoint returns every relationship touching (nodeType,
// nodeID) as either its source or target.
func (s *Store) RelationshipsByEndpoint(ctx context.Context, q Queryer, nodeType contracts.NodeType, nodeID string) ([]RelationshipEndpoint, error) {
	stmt := s.Catalog.MustGet("relationships/by-endpoint")
	rows, err := q.QueryContext(ctx, stmt.SQL, string(nodeType), nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: relationships by endpoint: %w", err)
	}
	defer rows.Close()

	var out []RelationshipEndpoint
	for rows.Next() {
		var r RelationshipEndpoint
		if err := rows.Scan(&r.SourceType, &r.SourceID, &r.TargetType, &r.TargetID, &r.TypeID); err != nil {
			return nil, fmt.Errorf("store: scan relationship endpoint: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindReverseRelationship looks up a specific edge, used to detect an
// already-materialized reverse edge before the relationship executor
// creates a duplicate for a symmetric type.
func (s *Store) FindReverseRelationship(ctx context.Context, q Queryer, sourceType contracts.NodeType, sourceID string, targetType contracts.NodeType, targetID, typeID string) (string, error) {
	stmt := s.Catalog.MustGet("relationships/find-reverse")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, string(sourceType), sourceID, string(targetType), targetID, typeID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: find reverse relationship: %w", err)
	}
	return id, nil
}

func (s *Store) InsertRelationship(ctx context.Context, q Queryer, r contracts.Relationship) error {
	stmt := s.Catalog.MustGet("relationships/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		r.ID, string(r.SourceType), r.SourceID, string(r.TargetType), r.TargetID, r.TypeID,
		r.StatusID, jsonObject(r.Properties), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert relationship: %w", err)
	}
	return nil
}

func (s *Store) UpdateRelationship(ctx context.Context, q Queryer, r contracts.Relationship) error {
	stmt := s.Catalog.MustGet("relationships/update")
	res, err := q.ExecContext(ctx, stmt.SQL, r.ID, r.StatusID, jsonObject(r.Properties), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update relationship: %w", err)
	}
	return requireOneRow(res, "relationship")
}

func scanRelationship(row *sql.Row) (contracts.Relationship, error) {
	var r contracts.Relationship
	var properties jsonObject
	var sourceType, targetType string
	err := row.Scan(&r.ID, &sourceType, &r.SourceID, &targetType, &r.TargetID, &r.TypeID, &r.StatusID, &properties, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.Relationship{}, contracts.NotFound("relationship")
	}
	if err != nil {
		return contracts.Relationship{}, fmt.Errorf("store: scan relationship: %w", err)
	}
	r.SourceType, r.TargetType = contracts.NodeType(sourceType), contracts.NodeType(targetType)
	r.Properties = map[string]interface{}(properties)
	return r, nil
}
