package organizations

import "time"

// Organization is a tenant on the platform.
type Organization struct {
	ID        int64
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
