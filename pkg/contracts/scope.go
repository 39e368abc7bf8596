package contracts

// Scope is a taxonomy row naming a privacy scope. Names are
// security-critical: they are referenced by credential grants and entity
// scope sets, and a built-in scope's name is immutable — any rename of a
// row with IsBuiltin true must fail with CodeConflict and leave the row
// untouched.
type Scope struct {
	ID        string
	Name      string
	IsBuiltin bool
}

// TaxonomyKind enumerates the five bidirectional name/id tables the enum
// registry loads at startup: statuses, scopes, entity types, relationship
// types, and log types.
type TaxonomyKind string

const (
	TaxonomyStatus       TaxonomyKind = "status"
	TaxonomyScope        TaxonomyKind = "scope"
	TaxonomyEntityType   TaxonomyKind = "entity_type"
	TaxonomyRelationType TaxonomyKind = "relationship_type"
	TaxonomyLogType      TaxonomyKind = "log_type"
)

// TaxonomyRow is the generic shape every taxonomy table shares: an id, a
// name, and whether the row is a protected built-in.
type TaxonomyRow struct {
	ID        string
	Name      string
	IsBuiltin bool
}
