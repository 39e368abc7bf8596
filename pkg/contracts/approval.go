package contracts

import (
	"encoding/json"
	"time"
)

// ApprovalStatus is the terminal-or-not state of an ApprovalRequest.
// Transitions out of ApprovalPending are one-shot: once a request leaves
// pending it never re-enters it.
type ApprovalStatus string

const (
	ApprovalPending        ApprovalStatus = "pending"
	ApprovalApproved       ApprovalStatus = "approved"
	ApprovalApprovedFailed ApprovalStatus = "approved-failed"
	ApprovalRejected       ApprovalStatus = "rejected"
)

// ReviewDetails carries reviewer-supplied grants that override an agent's
// originally requested values. Only the register_agent action honors
// these; any other action that includes them is rejected with
// INVALID_INPUT by the approval engine before the executor ever runs.
type ReviewDetails struct {
	GrantScopes           []string `json:"grant_scopes,omitempty"`
	GrantRequiresApproval *bool    `json:"grant_requires_approval,omitempty"`
}

// ApprovalRequest is a durable proposal submitted by an untrusted agent in
// place of executing a write directly. ChangeDetails is the serialized
// action payload the named executor will receive verbatim on approval.
type ApprovalRequest struct {
	ID                string
	RequestType       string // action name, e.g. "create_entity"
	RequestedByAgentID string
	ChangeDetails     json.RawMessage

	Status ApprovalStatus

	ReviewedByUserID string
	ReviewedAt       *time.Time
	ReviewNotes      string
	ReviewDetails    *ReviewDetails

	// LinkedRecordID is set to the id of the record the executor produced
	// or touched, once the request reaches ApprovalApproved.
	LinkedRecordID string

	// RelatedJobID optionally threads an approval through a job's history.
	RelatedJobID string

	// ExecutorError captures the executor's error message when the
	// request reaches ApprovalApprovedFailed.
	ExecutorError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the request has left the pending state and can
// no longer be approved or rejected.
func (a ApprovalRequest) Terminal() bool {
	return a.Status != ApprovalPending
}

// FieldDelta is one entry of an approval diff: the current value of a
// field and the value the proposal would set it to.
type FieldDelta struct {
	From json.RawMessage `json:"from"`
	To   json.RawMessage `json:"to"`
}

// ApprovalDiff is the result of diffing a pending request's proposal
// against the current state of the record it targets (for update_*
// actions) or against an empty baseline (for create_* actions).
type ApprovalDiff struct {
	Changes map[string]FieldDelta `json:"changes"`
}
