package store

import (
	"context"
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// taxonomyTables maps each TaxonomyKind to the physical table the enum
// registry loads it from. taxonomy/list and taxonomy/rename both carry a
// %s placeholder rather than five near-identical statements.
var taxonomyTables = map[contracts.TaxonomyKind]string{
	contracts.TaxonomyStatus:       "statuses",
	contracts.TaxonomyScope:        "scopes",
	contracts.TaxonomyEntityType:   "entity_types",
	contracts.TaxonomyRelationType: "relationship_types",
	contracts.TaxonomyLogType:      "log_types",
}

// LoadTaxonomy satisfies enums.TaxonomyLoader: it reads every row of the
// table backing kind. Called once per kind by every enums.Registry.Reload,
// which reloads all kinds; RenameTaxonomy does not trigger a reload.
func (s *Store) LoadTaxonomy(ctx context.Context, kind contracts.TaxonomyKind) ([]contracts.TaxonomyRow, error) {
	table, ok := taxonomyTables[kind]
	if !ok {
		return nil, fmt.Errorf("store: unknown taxonomy kind %q", kind)
	}
	stmt := s.Catalog.MustGet("taxonomy/list")
	query := fmt.Sprintf(stmt.SQL, table)

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: load taxonomy %s: %w", kind, err)
	}
	defer rows.Close()

	var out []contracts.TaxonomyRow
	for rows.Next() {
		var row contracts.TaxonomyRow
		if err := rows.Scan(&row.ID, &row.Name, &row.IsBuiltin); err != nil {
			return nil, fmt.Errorf("store: scan taxonomy %s row: %w", kind, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate taxonomy %s: %w", kind, err)
	}
	return out, nil
}

// RenameTaxonomy renames a non-built-in row. The UPDATE's own is_builtin =
// false guard is the authoritative check; when it matches no row (the row
// is built-in or absent) RenameTaxonomy returns a CodeConflict rather than
// a silent no-op.
func (s *Store) RenameTaxonomy(ctx context.Context, kind contracts.TaxonomyKind, id, name string) error {
	table, ok := taxonomyTables[kind]
	if !ok {
		return fmt.Errorf("store: unknown taxonomy kind %q", kind)
	}
	stmt := s.Catalog.MustGet("taxonomy/rename")
	query := fmt.Sprintf(stmt.SQL, table)

	res, err := s.DB.ExecContext(ctx, query, id, name)
	if err != nil {
		return fmt.Errorf("store: rename taxonomy %s/%s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rename taxonomy %s/%s: %w", kind, id, err)
	}
	if n == 0 {
		return contracts.Conflict("taxonomy row is built-in or does not exist")
	}
	return nil
}
