package edgeauth

import "context"

// Device is the credential view of a registered edge server, as needed
// for request verification.
type Device struct {
	ID             int64
	OrganizationID int64
	EdgeKey        string
	EdgeSecret     string
}

// Store resolves devices by their public key. Implementations return
// shared.ErrNotFound when no device matches.
type Store interface {
	FindByKey(ctx context.Context, edgeKey string) (*Device, error)
}
