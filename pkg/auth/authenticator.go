// Package auth implements the Authenticator (C3): resolving a bearer
// credential to a typed Caller with a materialized effective scope set,
// plus the bootstrap-mode identity used by the local trusted transport.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/enums"
	"github.com/nebula-core/nebula/pkg/store"
)

// KeyStore is the narrow read surface the authenticator needs.
type KeyStore interface {
	KeyByPrefix(ctx context.Context, q store.Queryer, prefix string) (contracts.APIKey, error)
	EntityByID(ctx context.Context, q store.Queryer, id string) (contracts.Entity, error)
	AgentByID(ctx context.Context, q store.Queryer, id string) (contracts.Agent, error)
	TouchKeyLastUsed(ctx context.Context, q store.Queryer, id string, lastUsedAt interface{}) error
}

// Authenticator resolves bearer credentials against a KeyStore and the
// process-wide enum registry (to map effective scope ids back to names).
type Authenticator struct {
	store            KeyStore
	db               store.Queryer
	registry         *enums.Registry
	bootstrapEnabled bool
}

func NewAuthenticator(s KeyStore, db store.Queryer, registry *enums.Registry, bootstrapEnabled bool) *Authenticator {
	return &Authenticator{store: s, db: db, registry: registry, bootstrapEnabled: bootstrapEnabled}
}

// Authenticate resolves a bearer credential into a Caller. An empty
// credential yields a bootstrap Caller only when bootstrapEnabled is
// configured on; otherwise it is rejected with MISSING_AUTH.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (contracts.Caller, error) {
	if credential == "" {
		if a.bootstrapEnabled {
			return contracts.Caller{Kind: contracts.CallerBootstrap}, nil
		}
		return contracts.Caller{}, &contracts.Error{Code: contracts.CodeMissingAuth, Message: "missing bearer credential"}
	}

	if len(credential) < LookupPrefixLen || !strings.HasPrefix(credential, KeyPrefix) {
		return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "malformed credential"}
	}

	key, err := a.store.KeyByPrefix(ctx, a.db, LookupPrefix(credential))
	if err != nil {
		return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "invalid credential"}
	}
	if !VerifyCredential(credential, key.HashedKey) {
		return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "invalid credential"}
	}
	if key.Revoked || key.Expired(time.Now().UTC()) {
		return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "invalid credential"}
	}

	var caller contracts.Caller
	switch {
	case key.EntityID != "":
		entity, err := a.store.EntityByID(ctx, a.db, key.EntityID)
		if err != nil {
			return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "invalid credential"}
		}
		caller = contracts.Caller{
			Kind:          contracts.CallerUser,
			UserID:        entity.ID,
			OwnerScopeIDs: entity.ScopeIDs,
		}
		caller.EffectiveScopeIDs = effectiveScopes(key.ScopeIDs, entity.ScopeIDs)

	case key.AgentID != "":
		agent, err := a.store.AgentByID(ctx, a.db, key.AgentID)
		if err != nil {
			return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "invalid credential"}
		}
		caller = contracts.Caller{
			Kind:          contracts.CallerAgent,
			AgentID:       agent.ID,
			Trusted:       !agent.RequiresApproval,
			OwnerScopeIDs: agent.OwnerScopeIDs,
			Capabilities:  agent.Capabilities,
		}
		caller.EffectiveScopeIDs = effectiveScopes(key.ScopeIDs, agent.OwnerScopeIDs)

	default:
		return contracts.Caller{}, &contracts.Error{Code: contracts.CodeInvalidAuth, Message: "invalid credential"}
	}

	caller.EffectiveScopeNames = a.registry.NamesOf(caller.EffectiveScopeIDs)

	a.touchLastUsed(key.ID)
	return caller, nil
}

// effectiveScopes implements P9: the intersection of the credential's
// declared scopes and the owner's, or the owner's scopes verbatim when the
// credential declared none.
func effectiveScopes(keyScopes, ownerScopes []string) []string {
	if len(keyScopes) == 0 {
		return ownerScopes
	}
	owner := make(map[string]bool, len(ownerScopes))
	for _, s := range ownerScopes {
		owner[s] = true
	}
	out := make([]string, 0, len(keyScopes))
	for _, s := range keyScopes {
		if owner[s] {
			out = append(out, s)
		}
	}
	return out
}

// touchLastUsed updates the key's last-used timestamp off the request's
// critical path. It uses its own background context and a short deadline
// so a slow or failing update never holds the caller's connection or
// blocks the response the authentication itself produced.
func (a *Authenticator) touchLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.store.TouchKeyLastUsed(ctx, a.db, keyID, time.Now().UTC())
	}()
}
