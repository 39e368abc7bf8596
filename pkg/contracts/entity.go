package contracts

import "time"

// ContextSegment is a per-scope slice of an entity's metadata. It is
// filtered out of read responses when none of its scopes intersect the
// caller's effective scopes.
type ContextSegment struct {
	Text   string   `json:"text"`
	Scopes []string `json:"scopes"`
}

// Entity is the primary addressable node in the graph: a person, project,
// tool, protocol, or any other typed thing a caller wants to track.
type Entity struct {
	ID       string
	Name     string
	TypeID   string
	StatusID string

	// ScopeIDs governs write access: a write succeeds only if ScopeIDs is a
	// subset of the caller's effective scopes (or the caller is admin).
	// Required non-empty on write.
	ScopeIDs []string

	// Tags are ordered, capped at 50 entries of at most 64 characters each.
	Tags []string

	// Metadata is a free-form object that may contain a reserved
	// "context_segments" key holding []ContextSegment. Every segment's
	// scopes must be a subset of ScopeIDs (by name) at write time.
	Metadata map[string]interface{}

	// VaultPath is an optional relative path into blob storage; it must
	// not contain ".." path traversal components.
	VaultPath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxTags and MaxTagLength bound Entity.Tags, enforced by the entity
// executors before a row is written.
const (
	MaxTags      = 50
	MaxTagLength = 64
)

// ContextSegmentsKey is the reserved metadata key an entity's segmented
// context lives under.
const ContextSegmentsKey = "context_segments"

// BannedMetadataKeys are rejected unconditionally from any metadata object
// written through an executor, regardless of entity type, to prevent
// prototype-pollution-shaped payloads from round-tripping through
// serialization layers downstream of the core.
var BannedMetadataKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// Segments extracts and type-asserts e.Metadata[ContextSegmentsKey] into a
// []ContextSegment, tolerating both a native slice (already-structured
// input) and the []interface{} shape json.Unmarshal produces for untyped
// metadata. It returns nil if the key is absent or malformed.
func (e Entity) Segments() []ContextSegment {
	return decodeSegments(e.Metadata)
}

func decodeSegments(metadata map[string]interface{}) []ContextSegment {
	raw, ok := metadata[ContextSegmentsKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []ContextSegment:
		return v
	case []interface{}:
		out := make([]ContextSegment, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			seg := ContextSegment{}
			if text, ok := m["text"].(string); ok {
				seg.Text = text
			}
			if scopes, ok := m["scopes"].([]interface{}); ok {
				for _, s := range scopes {
					if name, ok := s.(string); ok {
						seg.Scopes = append(seg.Scopes, name)
					}
				}
			}
			out = append(out, seg)
		}
		return out
	default:
		return nil
	}
}

// EntityMetadataShape is implemented by the closed per-type metadata shapes
// (Person, Project, Tool, ...) an executor may decode an entity's open
// Metadata container into for type-specific validation. Entity types with
// no registered shape fall through to generic validation only.
type EntityMetadataShape interface {
	Validate() error
}

// PersonMetadata is the typed shape validated for entities of type
// "person".
type PersonMetadata struct {
	BirthDate string `json:"birth_date,omitempty"`
	Role      string `json:"role,omitempty"`
}

// ProjectMetadata is the typed shape validated for entities of type
// "project".
type ProjectMetadata struct {
	RepoURL string `json:"repo_url,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ToolMetadata is the typed shape validated for entities of type "tool".
type ToolMetadata struct {
	Version  string `json:"version,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ProtocolMetadata is the typed shape validated for entities of type
// "protocol".
type ProtocolMetadata struct {
	Steps []string `json:"steps,omitempty"`
}
