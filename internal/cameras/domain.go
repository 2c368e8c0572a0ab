package cameras

import "time"

// Camera is a video source registered to a tenant, usually attached to
// an edge server that ingests its stream.
type Camera struct {
	ID             int64
	OrganizationID int64
	EdgeServerID   *int64
	Name           string
	StreamURL      string
	Location       string
	IsOnline       bool
	LastSeenAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
