// Package executor implements the Action Executors (C6): the fixed
// registry of named mutations the approval engine and direct-write API
// routes both dispatch through. Every executor follows the same template
// — deserialize, resolve enums, enforce uniqueness, validate metadata,
// validate context segments, mutate under the ambient audit identity —
// so the registry itself stays a thin, static name-to-function map
// populated once at startup and never mutated afterward.
package executor

import (
	"context"
	"encoding/json"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/store"
	"github.com/nebula-core/nebula/pkg/validate"
)

// Env is the set of collaborators a single executor invocation needs. Tx
// is always the transaction the approval engine or direct-write handler
// opened for this mutation; every store call an executor makes must go
// through it so the row mutation and its audit entry commit together.
type Env struct {
	Store    *store.Store
	Tx       store.Queryer
	Enums    *enums.Registry
	Schemas  *validate.SchemaRegistry
	Identity contracts.AuditIdentity
	Caller   contracts.Caller

	// ReviewDetails carries a reviewer's register_agent grants. It is nil
	// for every action but register_agent, and for register_agent itself
	// when no grants were supplied (the agent's originally requested
	// values are used verbatim).
	ReviewDetails *contracts.ReviewDetails
}

// Result is what a successful executor invocation reports back to its
// caller (the approval engine, for linking, or a direct-write handler).
type Result struct {
	NodeType contracts.NodeType
	RecordID string

	// Secret carries a freshly generated raw credential for executors
	// that mint one (register_agent). Callers must surface it to the
	// caller exactly once and never log or persist it themselves; the
	// store only ever holds the hash.
	Secret string
}

// Fn is the shape every registered executor implements. payload is the
// proposal's raw JSON; it may come from a freshly-submitted write request
// or from an approval row's change_details column.
type Fn func(ctx context.Context, env *Env, payload json.RawMessage) (Result, error)

// Registry is the static action-name-to-executor map. It is built once by
// NewRegistry and never mutated afterward; Dispatch is the only way
// callers reach a registered Fn.
type Registry struct {
	fns map[string]Fn
}

// NewRegistry builds the complete registry of action executors. This is
// the one place new actions are wired in.
func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]Fn, 24)}
	r.fns["create_entity"] = createEntity
	r.fns["update_entity"] = updateEntity
	r.fns["bulk_create_entities"] = bulkCreateEntities
	r.fns["bulk_update_entity_tags"] = bulkUpdateEntityTags
	r.fns["bulk_update_entity_scopes"] = bulkUpdateEntityScopes
	r.fns["revert_entity"] = revertEntity

	r.fns["create_knowledge"] = createKnowledge
	r.fns["update_knowledge"] = updateKnowledge
	r.fns["bulk_create_knowledge"] = bulkCreateKnowledge

	r.fns["create_relationship"] = createRelationship
	r.fns["update_relationship"] = updateRelationship

	r.fns["create_job"] = createJob
	r.fns["update_job"] = updateJob
	r.fns["update_job_status"] = updateJobStatus

	r.fns["create_log"] = createLog
	r.fns["update_log"] = updateLog

	r.fns["create_file"] = createFile
	r.fns["update_file"] = updateFile

	r.fns["create_protocol"] = createProtocol
	r.fns["update_protocol"] = updateProtocol

	r.fns["register_agent"] = registerAgent
	return r
}

// Dispatch resolves action in the registry and invokes it. An unknown
// action name is ErrNoExecutor, which the approval engine maps straight
// to an approved-failed transition.
func (r *Registry) Dispatch(ctx context.Context, env *Env, action string, payload json.RawMessage) (Result, error) {
	fn, ok := r.fns[action]
	if !ok {
		return Result{}, contracts.ErrNoExecutor
	}
	return fn(ctx, env, payload)
}

// Has reports whether action has a registered executor, used by the
// approval engine to fail create() fast on an unknown requestType rather
// than only discovering it at approve() time.
func (r *Registry) Has(action string) bool {
	_, ok := r.fns[action]
	return ok
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return contracts.InvalidInput("payload", "empty proposal payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return contracts.InvalidInput("payload", "malformed proposal payload: "+err.Error())
	}
	return nil
}

// rejectBannedAndSanitize runs the two metadata-shape-independent steps
// every executor template entry 4 requires: reject banned keys, then
// strip control/bidi characters from every string leaf.
func rejectBannedAndSanitize(metadata map[string]interface{}) (map[string]interface{}, error) {
	if metadata == nil {
		return nil, nil
	}
	if err := validate.RejectBannedKeys(metadata); err != nil {
		return nil, err
	}
	sanitized, _ := validate.SanitizeStrings(metadata).(map[string]interface{})
	return sanitized, nil
}

// contextSegmentsOf extracts metadata's context_segments entry, if any, as
// a typed slice so validate.ValidateContextSegments can run over it. It
// reuses Entity.Segments' decode logic (tolerant of both native and
// JSON-unmarshaled segment shapes) against any metadata map.
func contextSegmentsOf(metadata map[string]interface{}) []contracts.ContextSegment {
	return contracts.Entity{Metadata: metadata}.Segments()
}
