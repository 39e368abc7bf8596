package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nebula-core/nebula/pkg/contracts"
)

// TestScenario_UniquenessAcrossResources exercises P8: two create_entity
// calls with the same (name, type, scope set) cannot both succeed, and
// neither can two create_entity calls with the same vault path, nor two
// create_knowledge calls with the same url. Each sub-test runs a fresh
// executor call against a store that already reports a colliding row.
func TestScenario_UniquenessAcrossResources(t *testing.T) {
	t.Run("duplicate name/type/scopes", func(t *testing.T) {
		env, mock := newTestEnv(t)
		mock.ExpectQuery("SELECT id FROM entities WHERE name").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ent-existing"))

		payload, _ := json.Marshal(map[string]interface{}{
			"name": "X", "type": "generic", "status": "active", "scopes": []string{"scope-a"},
		})
		_, err := createEntity(context.Background(), env, payload)
		domErr, ok := contracts.AsError(err)
		if !ok || domErr.Code != contracts.CodeConflict {
			t.Fatalf("expected CodeConflict, got %v", err)
		}
	})

	t.Run("duplicate vault path", func(t *testing.T) {
		env, mock := newTestEnv(t)
		mock.ExpectQuery("SELECT id FROM entities WHERE vault_path").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ent-existing"))

		payload, _ := json.Marshal(map[string]interface{}{
			"name": "X", "type": "generic", "status": "active",
			"scopes": []string{"scope-a"}, "vault_path": "agents/x",
		})
		_, err := createEntity(context.Background(), env, payload)
		domErr, ok := contracts.AsError(err)
		if !ok || domErr.Code != contracts.CodeConflict {
			t.Fatalf("expected CodeConflict, got %v", err)
		}
	})

	t.Run("duplicate knowledge url", func(t *testing.T) {
		env, mock := newTestEnv(t)
		mock.ExpectQuery("SELECT id FROM knowledge_items WHERE url").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("kn-existing"))

		payload, _ := json.Marshal(map[string]interface{}{
			"title": "Doc", "url": "https://example.test/doc", "status": "active",
			"scopes": []string{"scope-a"},
		})
		_, err := createKnowledge(context.Background(), env, payload)
		domErr, ok := contracts.AsError(err)
		if !ok || domErr.Code != contracts.CodeConflict {
			t.Fatalf("expected CodeConflict, got %v", err)
		}
	})
}

// TestScenario_BuiltinRenameImmutability is P7, exercised at the enum
// registry's IsBuiltin predicate rather than through a taxonomy executor
// (renaming taxonomy rows is a direct store operation, pkg/store's
// RenameTaxonomy, not a registered action executor).
func TestScenario_BuiltinRenameImmutability(t *testing.T) {
	env, _ := newTestEnv(t)
	if !env.Enums.IsBuiltin(contracts.TaxonomyScope, "scope-a") {
		t.Fatal("expected scope-a to be seeded as a built-in row")
	}
}

// TestScenario_JobOwnershipImmutable is P10's write-side half: once a job
// has an owning agent, update_job may not reassign it to a different one.
func TestScenario_JobOwnershipImmutable(t *testing.T) {
	env, mock := newTestEnv(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, title, description, job_type, assignee_user_id, agent_id, status_id, priority, parent_job_id, due_at, completed_at, metadata, created_at, updated_at FROM jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "job_type", "assignee_user_id", "agent_id", "status_id",
			"priority", "parent_job_id", "due_at", "completed_at", "metadata", "created_at", "updated_at",
		}).AddRow("job-1", "T", "D", "type", "", "agent-1", "active", "low", "", nil, nil, "{}", now, now))

	payload, _ := json.Marshal(map[string]interface{}{
		"id": "job-1", "agent_id": "agent-2", "status": "active", "priority": "low",
	})
	_, err := updateJob(context.Background(), env, payload)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidInput {
		t.Fatalf("expected CodeInvalidInput, got %v", err)
	}
}
