package contracts

import (
	"fmt"
	"time"
)

// Priority is the fixed ordinal set a Job's priority field is drawn from.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Job is a unit of work, optionally owned by an agent (which then
// restricts that agent to touching only its own jobs) or assigned to a
// user, and optionally nested under a parent job.
type Job struct {
	// ID is human-readable: "YYYYQ#-NNNN" where NNNN is a 4-character
	// base36 suffix unique per quarter, e.g. "2026Q3-4F0A".
	ID string

	Title       string
	Description string
	JobType     string

	AssigneeUserID string
	AgentID        string // owning agent; immutable by that agent once set

	StatusID string
	Priority Priority

	ParentJobID string
	DueAt       *time.Time
	CompletedAt *time.Time
	Metadata    map[string]interface{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuarterPrefix returns the "YYYYQ#" prefix for t, e.g. "2026Q3".
func QuarterPrefix(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%04dQ%d", t.Year(), q)
}

// OwnedBy reports whether agentID is the job's owning agent. A job with no
// owning agent is not owned by any agent.
func (j Job) OwnedBy(agentID string) bool {
	return j.AgentID != "" && j.AgentID == agentID
}
