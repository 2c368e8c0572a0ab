package license

import "time"

// Status is the lifecycle state of a license.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
)

// DefaultGracePeriodDays is how long after nominal expiry access is
// still granted, unless overridden by configuration.
const DefaultGracePeriodDays = 14

// License entitles one organization to run the platform. Organizations
// may hold several rows historically; only an access-granting one
// matters for gating.
type License struct {
	ID             int64
	OrganizationID int64
	EdgeServerID   *int64
	Plan           string
	LicenseKey     string
	Status         Status
	MaxCameras     int
	TrialEndsAt    *time.Time
	ActivatedAt    *time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GraceBoundary is the single cut-off shared by the access check and
// the expiry sweep: a license whose expiry predates it is gone, one
// whose expiry is after it is still good. Keeping both callers on this
// one function is what guarantees they never disagree at steady state.
func GraceBoundary(now time.Time, graceDays int) time.Time {
	return now.AddDate(0, 0, -graceDays)
}

// GrantsAccess reports whether this license currently entitles its
// organization to access. An active license with a past expiry still
// grants access while inside the grace window, even if the sweep has
// not flipped it yet; the boundary is recomputed inline rather than
// trusting the stored status.
func (l License) GrantsAccess(now time.Time, graceDays int) bool {
	if l.Status != StatusActive {
		return false
	}
	if l.ExpiresAt == nil {
		return true
	}
	return l.ExpiresAt.After(GraceBoundary(now, graceDays))
}

// SweepEligible reports whether the daily sweep should flip this
// license to expired. The status precondition makes re-running the
// sweep a no-op on already expired rows.
func (l License) SweepEligible(now time.Time, graceDays int) bool {
	if l.Status != StatusActive || l.ExpiresAt == nil {
		return false
	}
	return !l.ExpiresAt.After(GraceBoundary(now, graceDays))
}
