package users

import "context"

// ListFilter narrows user listings.
type ListFilter struct {
	OrganizationID *int64
	Role           string
	ActiveOnly     bool
}

// Repository defines persistence operations for user management.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]User, error)
	Get(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
