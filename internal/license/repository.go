package license

import (
	"context"
	"time"
)

// ListFilter narrows license listings.
type ListFilter struct {
	OrganizationID *int64
	Status         Status
	Plan           string
}

// Repository defines persistence operations for licenses.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]License, error)
	Get(ctx context.Context, id int64) (*License, error)
	Create(ctx context.Context, l *License) (*License, error)
	Update(ctx context.Context, l *License) error
	Delete(ctx context.Context, id int64) error
	// HasAccessGranting reports whether the organization holds at
	// least one active license whose expiry is null or after the
	// boundary.
	HasAccessGranting(ctx context.Context, organizationID int64, boundary time.Time) (bool, error)
	// ExpireOverdue flips every active license expired beyond the
	// boundary and returns the affected rows.
	ExpireOverdue(ctx context.Context, boundary time.Time) ([]License, error)
}
