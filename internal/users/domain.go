package users

import "time"

// User represents a managed user account.
type User struct {
	ID             int64
	Email          string
	Name           string
	PasswordHash   string
	Role           string
	OrganizationID *int64
	IsSuperAdmin   bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
