package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) JobByID(ctx context.Context, q Queryer, id string) (contracts.Job, error) {
	stmt := s.Catalog.MustGet("jobs/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanJob(row)
}

// MaxJobSuffixForQuarter returns the highest existing job id for the given
// "YYYYQ#-" prefix, or "" if the quarter has no jobs yet. The job executor
// derives the next base36 suffix from it.
func (s *Store) MaxJobSuffixForQuarter(ctx context.Context, q Queryer, quarterPrefix string) (string, error) {
	stmt := s.Catalog.MustGet("jobs/max-suffix-for-quarter")
	var id string
	err := q.QueryRowContext(ctx, stmt.SQL, quarterPrefix+"%").Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: max job suffix: %w", err)
	}
	return id, nil
}

func (s *Store) InsertJob(ctx context.Context, q Queryer, j contracts.Job) error {
	stmt := s.Catalog.MustGet("jobs/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		j.ID, j.Title, j.Description, j.JobType, j.AssigneeUserID, j.AgentID, j.StatusID,
		string(j.Priority), nullString(j.ParentJobID), j.DueAt, j.CompletedAt, jsonObject(j.Metadata), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert job: %w", err)
	}
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, q Queryer, j contracts.Job) error {
	stmt := s.Catalog.MustGet("jobs/update")
	res, err := q.ExecContext(ctx, stmt.SQL,
		j.ID, j.Title, j.Description, j.JobType, j.AssigneeUserID, j.StatusID,
		string(j.Priority), nullString(j.ParentJobID), j.DueAt, jsonObject(j.Metadata), j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update job: %w", err)
	}
	return requireOneRow(res, "job")
}

func (s *Store) UpdateJobStatus(ctx context.Context, q Queryer, id, statusID string, completedAt interface{}, updatedAt interface{}) error {
	stmt := s.Catalog.MustGet("jobs/update-status")
	res, err := q.ExecContext(ctx, stmt.SQL, id, statusID, completedAt, updatedAt)
	if err != nil {
		return fmt.Errorf("store: update job status: %w", err)
	}
	return requireOneRow(res, "job")
}

// ListJobsByOwner returns jobs owned by agentID, the listing an agent's
// own job queries are narrowed to under jobOwnership.
func (s *Store) ListJobsByOwner(ctx context.Context, q Queryer, agentID string, limit, offset int) ([]contracts.Job, error) {
	stmt := s.Catalog.MustGet("jobs/list-by-owner")
	rows, err := q.QueryContext(ctx, stmt.SQL, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs by owner: %w", err)
	}
	defer rows.Close()

	var out []contracts.Job
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row *sql.Row) (contracts.Job, error) {
	var j contracts.Job
	var priority string
	var parentJobID sql.NullString
	var metadata jsonObject
	err := row.Scan(&j.ID, &j.Title, &j.Description, &j.JobType, &j.AssigneeUserID, &j.AgentID,
		&j.StatusID, &priority, &parentJobID, &j.DueAt, &j.CompletedAt, &metadata, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.Job{}, contracts.NotFound("job")
	}
	if err != nil {
		return contracts.Job{}, fmt.Errorf("store: scan job: %w", err)
	}
	j.Priority = contracts.Priority(priority)
	j.ParentJobID = parentJobID.String
	j.Metadata = map[string]interface{}(metadata)
	return j, nil
}

func scanJobRow(rows *sql.Rows) (contracts.Job, error) {
	var j contracts.Job
	var priority string
	var parentJobID sql.NullString
	var metadata jsonObject
	err := rows.Scan(&j.ID, &j.Title, &j.Description, &j.JobType, &j.AssigneeUserID, &j.AgentID,
		&j.StatusID, &priority, &parentJobID, &j.DueAt, &j.CompletedAt, &metadata, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return contracts.Job{}, fmt.Errorf("store: scan job row: %w", err)
	}
	j.Priority = contracts.Priority(priority)
	j.ParentJobID = parentJobID.String
	j.Metadata = map[string]interface{}(metadata)
	return j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
