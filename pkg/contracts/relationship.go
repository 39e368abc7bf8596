package contracts

import "time"

// Relationship is a typed, possibly-symmetric edge between two nodes of
// any NodeType. The store materializes the reverse edge for symmetric
// types and refuses to close a cycle for acyclic types; both invariants
// are enforced by the relationship executor, not by the type itself.
type Relationship struct {
	ID         string
	SourceType NodeType
	SourceID   string
	TargetType NodeType
	TargetID   string
	TypeID     string
	StatusID   string
	Properties map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Source returns the relationship's source endpoint as a NodeRef.
func (r Relationship) Source() NodeRef { return NodeRef{Type: r.SourceType, ID: r.SourceID} }

// Target returns the relationship's target endpoint as a NodeRef.
func (r Relationship) Target() NodeRef { return NodeRef{Type: r.TargetType, ID: r.TargetID} }

// SelfReferential reports whether the relationship points from a node back
// to itself, which the executor rejects for relationship types that
// disallow self-reference.
func (r Relationship) SelfReferential() bool {
	return r.SourceType == r.TargetType && r.SourceID == r.TargetID
}
