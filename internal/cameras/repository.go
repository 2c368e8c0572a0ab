package cameras

import "context"

// ListFilter narrows camera listings.
type ListFilter struct {
	OrganizationID *int64
	EdgeServerID   *int64
	OnlineOnly     bool
}

// Repository defines persistence operations for cameras.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Camera, error)
	CountByOrganization(ctx context.Context, organizationID int64) (int, error)
	Get(ctx context.Context, id int64) (*Camera, error)
	Create(ctx context.Context, c *Camera) (*Camera, error)
	Update(ctx context.Context, c *Camera) error
	SetOnline(ctx context.Context, id int64, online bool) error
	Delete(ctx context.Context, id int64) error
}
