package scope

import (
	"context"
	"testing"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/store"
)

type fakeStore struct {
	entities map[string]contracts.Entity
	jobs     map[string]contracts.Job
	files    map[string][]contracts.NodeRef
}

func (f *fakeStore) EntityByID(_ context.Context, _ store.Queryer, id string) (contracts.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return contracts.Entity{}, contracts.NotFound("entity")
	}
	return e, nil
}

func (f *fakeStore) EntitiesByIDs(_ context.Context, _ store.Queryer, ids []string) ([]contracts.Entity, error) {
	var out []contracts.Entity
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) KnowledgeByID(_ context.Context, _ store.Queryer, id string) (contracts.KnowledgeItem, error) {
	return contracts.KnowledgeItem{}, contracts.NotFound("knowledge item")
}

func (f *fakeStore) JobByID(_ context.Context, _ store.Queryer, id string) (contracts.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return contracts.Job{}, contracts.NotFound("job")
	}
	return j, nil
}

func (f *fakeStore) FileAttachmentsOf(_ context.Context, _ store.Queryer, fileID string) ([]contracts.NodeRef, error) {
	return f.files[fileID], nil
}

func TestEntityWriteAccess_ForbidsOutOfScope(t *testing.T) {
	s := &fakeStore{entities: map[string]contracts.Entity{
		"e1": {ID: "e1", ScopeIDs: []string{"scope-finance"}},
	}}
	checker := NewChecker(s)
	caller := contracts.Caller{Kind: contracts.CallerAgent, EffectiveScopeIDs: []string{"scope-public"}}

	err := checker.EntityWriteAccess(context.Background(), nil, caller, []string{"e1"})
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeForbidden {
		t.Fatalf("expected CodeForbidden, got %v", err)
	}
}

func TestEntityWriteAccess_AllowsSubset(t *testing.T) {
	s := &fakeStore{entities: map[string]contracts.Entity{
		"e1": {ID: "e1", ScopeIDs: []string{"scope-public"}},
	}}
	checker := NewChecker(s)
	caller := contracts.Caller{Kind: contracts.CallerAgent, EffectiveScopeIDs: []string{"scope-public", "scope-finance"}}

	if err := checker.EntityWriteAccess(context.Background(), nil, caller, []string{"e1"}); err != nil {
		t.Fatalf("expected access to be allowed, got %v", err)
	}
}

func TestEntityWriteAccess_MissingIDNotFound(t *testing.T) {
	s := &fakeStore{entities: map[string]contracts.Entity{}}
	checker := NewChecker(s)
	caller := contracts.Caller{Kind: contracts.CallerAgent, EffectiveScopeIDs: []string{"scope-public"}}

	err := checker.EntityWriteAccess(context.Background(), nil, caller, []string{"missing"})
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

// TestJobOwnership_P10 verifies an agent cannot touch a job it doesn't own.
func TestJobOwnership_P10(t *testing.T) {
	s := &fakeStore{jobs: map[string]contracts.Job{
		"job-1": {ID: "job-1", AgentID: "agent-a"},
	}}
	checker := NewChecker(s)

	other := contracts.Caller{Kind: contracts.CallerAgent, AgentID: "agent-b"}
	err := checker.JobOwnership(context.Background(), nil, other, "job-1")
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeNotFound {
		t.Fatalf("expected CodeNotFound for non-owning agent, got %v", err)
	}

	owner := contracts.Caller{Kind: contracts.CallerAgent, AgentID: "agent-a"}
	if err := checker.JobOwnership(context.Background(), nil, owner, "job-1"); err != nil {
		t.Fatalf("expected owning agent to pass, got %v", err)
	}

	admin := contracts.Caller{Kind: contracts.CallerAgent, AgentID: "agent-b", EffectiveScopeNames: []string{"admin"}}
	if err := checker.JobOwnership(context.Background(), nil, admin, "job-1"); err != nil {
		t.Fatalf("expected admin to bypass ownership check, got %v", err)
	}
}

func TestFileVisibility_PublicWithNoAttachments(t *testing.T) {
	s := &fakeStore{files: map[string][]contracts.NodeRef{}}
	checker := NewChecker(s)
	visible, err := checker.FileVisibility(context.Background(), nil, contracts.Caller{}, "file-1")
	if err != nil || !visible {
		t.Fatalf("expected unattached file to be visible, got visible=%v err=%v", visible, err)
	}
}

func TestFileVisibility_DeniedViaJobOwnership(t *testing.T) {
	s := &fakeStore{
		jobs: map[string]contracts.Job{"job-1": {ID: "job-1", AgentID: "agent-a"}},
		files: map[string][]contracts.NodeRef{
			"file-1": {{Type: contracts.NodeJob, ID: "job-1"}},
		},
	}
	checker := NewChecker(s)
	caller := contracts.Caller{Kind: contracts.CallerAgent, AgentID: "agent-b"}
	visible, err := checker.FileVisibility(context.Background(), nil, caller, "file-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if visible {
		t.Fatal("expected file attached to an unowned job to be invisible")
	}
}
