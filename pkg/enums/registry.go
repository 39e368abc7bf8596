// Package enums implements the process-wide enum registry (C1): immutable
// bidirectional name/id maps for statuses, scopes, entity types,
// relationship types, and log types, loaded at startup and swapped
// atomically on reload so concurrent readers never observe a torn read.
package enums

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// TaxonomyLoader is the narrow read surface the registry needs from the
// store. It is satisfied structurally by pkg/store's Store so this package
// never imports it, keeping the dependency direction leaves-first.
type TaxonomyLoader interface {
	LoadTaxonomy(ctx context.Context, kind contracts.TaxonomyKind) ([]contracts.TaxonomyRow, error)
}

// snapshot is one immutable generation of the registry's maps.
type snapshot struct {
	byKind map[contracts.TaxonomyKind]*table
}

type table struct {
	idByName map[string]string
	nameByID map[string]string
	builtin  map[string]bool // by id
}

func newTable() *table {
	return &table{
		idByName: make(map[string]string),
		nameByID: make(map[string]string),
		builtin:  make(map[string]bool),
	}
}

// Registry is the process-wide handle. Zero value is not usable; build one
// with Load. All read methods are lock-free: they load the current
// snapshot pointer once and operate on its (immutable) contents.
type Registry struct {
	current atomic.Pointer[snapshot]
	loader  TaxonomyLoader
}

var allKinds = []contracts.TaxonomyKind{
	contracts.TaxonomyStatus,
	contracts.TaxonomyScope,
	contracts.TaxonomyEntityType,
	contracts.TaxonomyRelationType,
	contracts.TaxonomyLogType,
}

// Load reads all five taxonomy tables in a single fan-out and returns a
// ready Registry. It fails atomically: if any one query fails, no
// snapshot is installed and the caller gets the error.
func Load(ctx context.Context, loader TaxonomyLoader) (*Registry, error) {
	r := &Registry{loader: loader}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload fetches a fresh snapshot and atomically swaps it in. Readers that
// are mid-request continue to see their already-loaded pointer; a new
// request after the swap sees the new snapshot. Load calls it once at
// startup; nothing in the package calls it after a taxonomy mutation.
func (r *Registry) Reload(ctx context.Context) error {
	next := &snapshot{byKind: make(map[contracts.TaxonomyKind]*table, len(allKinds))}
	for _, kind := range allKinds {
		rows, err := r.loader.LoadTaxonomy(ctx, kind)
		if err != nil {
			return fmt.Errorf("enums: load %s: %w", kind, err)
		}
		t := newTable()
		for _, row := range rows {
			t.idByName[row.Name] = row.ID
			t.nameByID[row.ID] = row.Name
			if row.IsBuiltin {
				t.builtin[row.ID] = true
			}
		}
		next.byKind[kind] = t
	}
	r.current.Store(next)
	return nil
}

func (r *Registry) snap() *snapshot {
	return r.current.Load()
}

func (r *Registry) resolve(kind contracts.TaxonomyKind, name string) (string, error) {
	if name == "" {
		return "", contracts.ErrRequired
	}
	t, ok := r.snap().byKind[kind]
	if !ok {
		return "", contracts.ErrUnknown
	}
	id, ok := t.idByName[name]
	if !ok {
		return "", contracts.ErrUnknown
	}
	return id, nil
}

// ResolveStatus resolves a status name to its id.
func (r *Registry) ResolveStatus(name string) (string, error) {
	return r.resolve(contracts.TaxonomyStatus, name)
}

// ResolveEntityType resolves an entity-type name to its id.
func (r *Registry) ResolveEntityType(name string) (string, error) {
	return r.resolve(contracts.TaxonomyEntityType, name)
}

// ResolveRelationshipType resolves a relationship-type name to its id.
func (r *Registry) ResolveRelationshipType(name string) (string, error) {
	return r.resolve(contracts.TaxonomyRelationType, name)
}

// ResolveLogType resolves a log-type name to its id.
func (r *Registry) ResolveLogType(name string) (string, error) {
	return r.resolve(contracts.TaxonomyLogType, name)
}

// ResolveScopes resolves a list of scope names to ids. An empty input
// returns ErrRequired, matching the same rule every other resolver
// applies: scope-less writes are a validation error, not an empty set.
func (r *Registry) ResolveScopes(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, contracts.ErrRequired
	}
	t, ok := r.snap().byKind[contracts.TaxonomyScope]
	if !ok {
		return nil, contracts.ErrUnknown
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := t.idByName[name]
		if !ok {
			return nil, fmt.Errorf("%w: scope %q", contracts.ErrUnknown, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NameOf maps a scope id back to its name, used by the mediator to resolve
// a caller's scope ids into names for segment filtering. Returns "" if the
// id is unknown in the current snapshot.
func (r *Registry) NameOf(scopeID string) string {
	t, ok := r.snap().byKind[contracts.TaxonomyScope]
	if !ok {
		return ""
	}
	return t.nameByID[scopeID]
}

// NamesOf maps a slice of scope ids to names, dropping any that are
// unknown in the current snapshot.
func (r *Registry) NamesOf(scopeIDs []string) []string {
	t, ok := r.snap().byKind[contracts.TaxonomyScope]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(scopeIDs))
	for _, id := range scopeIDs {
		if name, ok := t.nameByID[id]; ok {
			out = append(out, name)
		}
	}
	return out
}

// IsBuiltin reports whether the row with the given id in the given
// taxonomy kind is a protected built-in (its name may never change).
func (r *Registry) IsBuiltin(kind contracts.TaxonomyKind, id string) bool {
	t, ok := r.snap().byKind[kind]
	if !ok {
		return false
	}
	return t.builtin[id]
}

// NameExists reports whether name is already taken within kind in the
// current snapshot.
func (r *Registry) NameExists(kind contracts.TaxonomyKind, name string) bool {
	t, ok := r.snap().byKind[kind]
	if !ok {
		return false
	}
	_, exists := t.idByName[name]
	return exists
}
