package contracts

import "time"

// EnrollmentStatus tracks an EnrollmentSession through the bootstrap
// three-step protocol.
type EnrollmentStatus string

const (
	EnrollmentPendingApproval EnrollmentStatus = "pending_approval"
	EnrollmentApproved        EnrollmentStatus = "approved"
	EnrollmentRejected        EnrollmentStatus = "rejected"
	EnrollmentExpired         EnrollmentStatus = "expired"
	EnrollmentRedeemed        EnrollmentStatus = "redeemed"
)

// EnrollmentSession is the short-lived association between a pending agent
// row and a one-time-use enrollment token. Only the token's hash is
// persisted; the raw token is returned to the caller exactly once, from
// enrollStart.
type EnrollmentSession struct {
	ID                string
	AgentID           string // the pending agent this session will activate
	EnrollmentTokenHash string
	Status            EnrollmentStatus
	ApprovalRequestID string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past ExpiresAt at time now.
func (s EnrollmentSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// CanRedeem reports whether the session is in a state that enrollRedeem may
// act on: approved, not yet redeemed, and not expired.
func (s EnrollmentSession) CanRedeem(now time.Time) bool {
	return s.Status == EnrollmentApproved && !s.Expired(now)
}

// DefaultEnrollmentTTL is T_enroll: the default lifetime of an enrollment
// session from creation.
const DefaultEnrollmentTTL = 15 * time.Minute

// MaxEnrollWaitSeconds bounds a single enrollWait long-poll call.
const MaxEnrollWaitSeconds = 60
