package auth

import (
	"context"
	"testing"
	"time"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/store"
)

type fakeKeyStore struct {
	keys     map[string]contracts.APIKey // by prefix
	entities map[string]contracts.Entity
	agents   map[string]contracts.Agent
	touched  []string
}

func (f *fakeKeyStore) KeyByPrefix(_ context.Context, _ store.Queryer, prefix string) (contracts.APIKey, error) {
	k, ok := f.keys[prefix]
	if !ok {
		return contracts.APIKey{}, contracts.NotFound("api key")
	}
	return k, nil
}

func (f *fakeKeyStore) EntityByID(_ context.Context, _ store.Queryer, id string) (contracts.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return contracts.Entity{}, contracts.NotFound("entity")
	}
	return e, nil
}

func (f *fakeKeyStore) AgentByID(_ context.Context, _ store.Queryer, id string) (contracts.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return contracts.Agent{}, contracts.NotFound("agent")
	}
	return a, nil
}

func (f *fakeKeyStore) TouchKeyLastUsed(_ context.Context, _ store.Queryer, id string, _ interface{}) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeTaxonomyLoader struct{}

func (fakeTaxonomyLoader) LoadTaxonomy(_ context.Context, kind contracts.TaxonomyKind) ([]contracts.TaxonomyRow, error) {
	if kind != contracts.TaxonomyScope {
		return nil, nil
	}
	return []contracts.TaxonomyRow{
		{ID: "scope-public", Name: "public"},
		{ID: "scope-finance", Name: "finance"},
	}, nil
}

func newTestRegistry(t *testing.T) *enums.Registry {
	t.Helper()
	reg, err := enums.Load(context.Background(), fakeTaxonomyLoader{})
	if err != nil {
		t.Fatalf("enums.Load: %v", err)
	}
	return reg
}

func TestAuthenticate_UserKeyIntersectsScopes(t *testing.T) {
	raw, err := GenerateRawKey(KeyPrefix)
	if err != nil {
		t.Fatalf("GenerateRawKey: %v", err)
	}
	hash, err := HashCredential(raw)
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}

	fs := &fakeKeyStore{
		keys: map[string]contracts.APIKey{
			LookupPrefix(raw): {ID: "key-1", Prefix: LookupPrefix(raw), HashedKey: hash, EntityID: "ent-1", ScopeIDs: []string{"scope-public"}},
		},
		entities: map[string]contracts.Entity{
			"ent-1": {ID: "ent-1", ScopeIDs: []string{"scope-public", "scope-finance"}},
		},
	}

	authn := NewAuthenticator(fs, nil, newTestRegistry(t), false)
	caller, err := authn.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !caller.IsUser() || caller.UserID != "ent-1" {
		t.Fatalf("unexpected caller: %+v", caller)
	}
	if len(caller.EffectiveScopeIDs) != 1 || caller.EffectiveScopeIDs[0] != "scope-public" {
		t.Errorf("expected effective scopes to be intersected, got %v", caller.EffectiveScopeIDs)
	}

	time.Sleep(10 * time.Millisecond) // let the fire-and-forget touch land
	if len(fs.touched) != 1 {
		t.Errorf("expected last-used to be touched once, got %v", fs.touched)
	}
}

func TestAuthenticate_EmptyKeyScopesInheritsOwner(t *testing.T) {
	raw, _ := GenerateRawKey(KeyPrefix)
	hash, _ := HashCredential(raw)

	fs := &fakeKeyStore{
		keys: map[string]contracts.APIKey{
			LookupPrefix(raw): {ID: "key-1", Prefix: LookupPrefix(raw), HashedKey: hash, AgentID: "agent-1"},
		},
		agents: map[string]contracts.Agent{
			"agent-1": {ID: "agent-1", OwnerScopeIDs: []string{"scope-public"}, RequiresApproval: true},
		},
	}

	authn := NewAuthenticator(fs, nil, newTestRegistry(t), false)
	caller, err := authn.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if caller.Trusted {
		t.Error("expected caller to be untrusted when agent.RequiresApproval is true")
	}
	if len(caller.EffectiveScopeIDs) != 1 || caller.EffectiveScopeIDs[0] != "scope-public" {
		t.Errorf("expected inherited owner scopes, got %v", caller.EffectiveScopeIDs)
	}
}

func TestAuthenticate_RevokedKeyRejected(t *testing.T) {
	raw, _ := GenerateRawKey(KeyPrefix)
	hash, _ := HashCredential(raw)

	fs := &fakeKeyStore{
		keys: map[string]contracts.APIKey{
			LookupPrefix(raw): {ID: "key-1", Prefix: LookupPrefix(raw), HashedKey: hash, EntityID: "ent-1", Revoked: true},
		},
		entities: map[string]contracts.Entity{"ent-1": {ID: "ent-1"}},
	}

	authn := NewAuthenticator(fs, nil, newTestRegistry(t), false)
	_, err := authn.Authenticate(context.Background(), raw)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidAuth {
		t.Fatalf("expected CodeInvalidAuth, got %v", err)
	}
}

func TestAuthenticate_WrongSecretRejected(t *testing.T) {
	raw, _ := GenerateRawKey(KeyPrefix)
	hash, _ := HashCredential(raw)
	wrong, _ := GenerateRawKey(KeyPrefix)

	fs := &fakeKeyStore{
		keys: map[string]contracts.APIKey{
			LookupPrefix(raw): {ID: "key-1", Prefix: LookupPrefix(raw), HashedKey: hash, EntityID: "ent-1"},
		},
		entities: map[string]contracts.Entity{"ent-1": {ID: "ent-1"}},
	}

	// Force wrong's prefix to collide so the lookup succeeds but the hash
	// comparison must fail.
	fs.keys[LookupPrefix(wrong)] = fs.keys[LookupPrefix(raw)]

	authn := NewAuthenticator(fs, nil, newTestRegistry(t), false)
	_, err := authn.Authenticate(context.Background(), wrong)
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeInvalidAuth {
		t.Fatalf("expected CodeInvalidAuth, got %v", err)
	}
}

func TestAuthenticate_BootstrapModeNoCredential(t *testing.T) {
	authn := NewAuthenticator(&fakeKeyStore{}, nil, newTestRegistry(t), true)
	caller, err := authn.Authenticate(context.Background(), "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !caller.IsBootstrap() {
		t.Errorf("expected bootstrap caller, got %+v", caller)
	}
}

func TestAuthenticate_MissingCredentialRejectedWithoutBootstrap(t *testing.T) {
	authn := NewAuthenticator(&fakeKeyStore{}, nil, newTestRegistry(t), false)
	_, err := authn.Authenticate(context.Background(), "")
	domErr, ok := contracts.AsError(err)
	if !ok || domErr.Code != contracts.CodeMissingAuth {
		t.Fatalf("expected CodeMissingAuth, got %v", err)
	}
}
