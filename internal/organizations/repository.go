package organizations

import "context"

// Repository defines persistence operations for organizations.
type Repository interface {
	List(ctx context.Context) ([]Organization, error)
	Get(ctx context.Context, id int64) (*Organization, error)
	Create(ctx context.Context, o *Organization) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
