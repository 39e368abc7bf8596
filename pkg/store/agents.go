package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) AgentByID(ctx context.Context, q Queryer, id string) (contracts.Agent, error) {
	stmt := s.Catalog.MustGet("agents/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanAgent(row)
}

func (s *Store) AgentIDByName(ctx context.Context, q Queryer, name string) (string, error) {
	stmt := s.Catalog.MustGet("agents/by-name")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: agent by name: %w", err)
	}
	return id, nil
}

func (s *Store) InsertAgent(ctx context.Context, q Queryer, a contracts.Agent) error {
	stmt := s.Catalog.MustGet("agents/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		a.ID, a.Name, a.Description, stringSlice(a.OwnerScopeIDs), stringSlice(a.Capabilities),
		a.RequiresApproval, a.StatusID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert agent: %w", err)
	}
	return nil
}

// ActivateAgent transitions a pending agent to active (or any other
// subsequent status change that also needs to touch its owning scopes and
// approval requirement), used by the register_agent executor once its
// approval request is approved.
func (s *Store) ActivateAgent(ctx context.Context, q Queryer, id, statusID string, ownerScopeIDs []string, requiresApproval bool, updatedAt interface{}) error {
	stmt := s.Catalog.MustGet("agents/activate")
	res, err := q.ExecContext(ctx, stmt.SQL, id, statusID, stringSlice(ownerScopeIDs), requiresApproval, updatedAt)
	if err != nil {
		return fmt.Errorf("store: activate agent: %w", err)
	}
	return requireOneRow(res, "agent")
}

func scanAgent(row *sql.Row) (contracts.Agent, error) {
	var a contracts.Agent
	var ownerScopeIDs, capabilities stringSlice
	err := row.Scan(&a.ID, &a.Name, &a.Description, &ownerScopeIDs, &capabilities, &a.RequiresApproval, &a.StatusID, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.Agent{}, contracts.NotFound("agent")
	}
	if err != nil {
		return contracts.Agent{}, fmt.Errorf("store: scan agent: %w", err)
	}
	a.OwnerScopeIDs, a.Capabilities = []string(ownerScopeIDs), []string(capabilities)
	return a, nil
}
