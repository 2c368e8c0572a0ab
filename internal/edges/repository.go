package edges

import (
	"context"
	"time"
)

// ListFilter narrows edge server listings.
type ListFilter struct {
	OrganizationID *int64
	OnlineOnly     bool
	OfflineOnly    bool
}

// Repository defines persistence operations for edge servers.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]EdgeServer, error)
	Get(ctx context.Context, id int64) (*EdgeServer, error)
	Create(ctx context.Context, e *EdgeServer) (*EdgeServer, error)
	Update(ctx context.Context, e *EdgeServer) error
	Heartbeat(ctx context.Context, id int64, hostname string) error
	MarkStaleOffline(ctx context.Context, seenBefore time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}
