package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

func (s *Store) FileByID(ctx context.Context, q Queryer, id string) (contracts.File, error) {
	stmt := s.Catalog.MustGet("files/by-id")
	row := q.QueryRowContext(ctx, stmt.SQL, id)
	return scanFile(row)
}

func (s *Store) InsertFile(ctx context.Context, q Queryer, f contracts.File) error {
	stmt := s.Catalog.MustGet("files/insert")
	_, err := q.ExecContext(ctx, stmt.SQL,
		f.ID, f.Filename, f.FilePath, f.MimeType, f.SizeBytes, f.Checksum, f.StatusID,
		stringSlice(f.Tags), jsonObject(f.Metadata), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert file: %w", err)
	}
	return nil
}

func (s *Store) UpdateFile(ctx context.Context, q Queryer, f contracts.File) error {
	stmt := s.Catalog.MustGet("files/update")
	res, err := q.ExecContext(ctx, stmt.SQL,
		f.ID, f.Filename, f.MimeType, f.SizeBytes, f.Checksum, f.StatusID, stringSlice(f.Tags), jsonObject(f.Metadata), f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: update file: %w", err)
	}
	return requireOneRow(res, "file")
}

// FileAttachmentsOf returns every node the file with the given id is
// attached to (its outgoing relationships where it is the source), the
// set pkg/scope's Checker.FileVisibility checks attachment by attachment.
func (s *Store) FileAttachmentsOf(ctx context.Context, q Queryer, fileID string) ([]contracts.NodeRef, error) {
	stmt := s.Catalog.MustGet("files/attachments-of")
	rows, err := q.QueryContext(ctx, stmt.SQL, fileID)
	if err != nil {
		return nil, fmt.Errorf("store: file attachments: %w", err)
	}
	defer rows.Close()

	var out []contracts.NodeRef
	for rows.Next() {
		var ref contracts.NodeRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, fmt.Errorf("store: scan file attachment: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func scanFile(row *sql.Row) (contracts.File, error) {
	var f contracts.File
	var tags stringSlice
	var metadata jsonObject
	err := row.Scan(&f.ID, &f.Filename, &f.FilePath, &f.MimeType, &f.SizeBytes, &f.Checksum, &f.StatusID, &tags, &metadata, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return contracts.File{}, contracts.NotFound("file")
	}
	if err != nil {
		return contracts.File{}, fmt.Errorf("store: scan file: %w", err)
	}
	f.Tags, f.Metadata = []string(tags), map[string]interface{}(metadata)
	return f, nil
}
