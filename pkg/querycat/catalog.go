// Package querycat implements the query catalog (C2): a read-through cache
// of named parameterized SQL statements addressed by slash-path keys, e.g.
// "entities/by-id" or "jobs/list-by-owner". Centralizing the SQL text here
// keeps every other component free of inline strings and lets the store
// layer prepare statements once per catalog entry.
package querycat

import (
	"fmt"
	"sync"
)

// Statement is one named, parameterized SQL statement. Params documents the
// positional parameter order for callers and tests; the store layer is
// responsible for binding args in that order.
type Statement struct {
	Path   string
	SQL    string
	Params []string
}

// Catalog is a read-through cache: entries are registered once at startup
// (via Register or MustRegisterAll) and never mutated afterward, so reads
// need no locking beyond the one-time registration guard.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Statement
	sealed  bool
}

// New returns an empty catalog ready for registration.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Statement)}
}

// Register adds one statement to the catalog. It panics if called after
// Seal, or if path is already registered — both are programmer errors
// caught at startup, not runtime conditions to recover from.
func (c *Catalog) Register(stmt Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		panic(fmt.Sprintf("querycat: Register(%q) after Seal", stmt.Path))
	}
	if _, exists := c.entries[stmt.Path]; exists {
		panic(fmt.Sprintf("querycat: duplicate registration for %q", stmt.Path))
	}
	c.entries[stmt.Path] = stmt
}

// RegisterAll registers every statement in stmts, in order.
func (c *Catalog) RegisterAll(stmts ...Statement) {
	for _, s := range stmts {
		c.Register(s)
	}
}

// Seal freezes the catalog against further registration. Called once at
// startup after all built-in statements are loaded.
func (c *Catalog) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Get retrieves the statement registered at path. ok is false if no such
// path was ever registered.
func (c *Catalog) Get(path string) (Statement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stmt, ok := c.entries[path]
	return stmt, ok
}

// MustGet retrieves the statement registered at path, panicking if absent.
// Used by store methods wiring a fixed, known-at-compile-time path — a
// miss there is a programming error, not a data error.
func (c *Catalog) MustGet(path string) Statement {
	stmt, ok := c.Get(path)
	if !ok {
		panic(fmt.Sprintf("querycat: no statement registered at %q", path))
	}
	return stmt
}

// Len reports how many statements are registered.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
