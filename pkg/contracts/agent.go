package contracts

import "time"

// Agent is an autonomous caller. It is created pending via enrollment or
// direct registration, activated on approval, and may later be archived.
type Agent struct {
	ID          string
	Name        string // unique, non-empty
	Description string

	OwnerScopeIDs []string
	Capabilities  []string

	// RequiresApproval mirrors !Trusted for a Caller resolved from this
	// agent's credential: when true, every write this agent submits is
	// routed through the approval engine instead of executing directly.
	RequiresApproval bool

	StatusID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// APIKey is a credential row: either owned by an entity (user key) or an
// agent key. Only HashedKey and Prefix are persisted for the secret
// material itself; the raw key is shown to the caller exactly once.
type APIKey struct {
	ID       string
	Prefix   string // first 8 chars of the raw key, used for O(1) lookup
	HashedKey string

	// Exactly one of EntityID / AgentID is set.
	EntityID string
	AgentID  string

	// ScopeIDs is the credential's own declared scope restriction. Empty
	// means "inherit the owner's scopes verbatim".
	ScopeIDs []string

	Revoked   bool
	ExpiresAt *time.Time

	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the key is past its expiry at time now.
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// OwnerKind reports which owner type this key belongs to.
func (k APIKey) OwnerKind() CallerKind {
	if k.AgentID != "" {
		return CallerAgent
	}
	return CallerUser
}
