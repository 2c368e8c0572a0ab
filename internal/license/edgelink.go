package license

import (
	"context"

	"github.com/argus-vms/argus-cloud/internal/edges"
)

// EdgeDirectory adapts the license repository to the edge module's
// binding interface.
type EdgeDirectory struct {
	repo Repository
}

// NewEdgeDirectory constructs the adapter.
func NewEdgeDirectory(repo Repository) *EdgeDirectory {
	return &EdgeDirectory{repo: repo}
}

// Find resolves a license into its binding view.
func (d *EdgeDirectory) Find(ctx context.Context, id int64) (*edges.LicenseLink, error) {
	l, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &edges.LicenseLink{ID: l.ID, OrganizationID: l.OrganizationID, BoundEdgeID: l.EdgeServerID}, nil
}

// FirstAvailable returns the tenant's oldest active license with no
// edge server attached, or nil when none exists.
func (d *EdgeDirectory) FirstAvailable(ctx context.Context, organizationID int64) (*edges.LicenseLink, error) {
	licenses, err := d.repo.List(ctx, ListFilter{OrganizationID: &organizationID, Status: StatusActive})
	if err != nil {
		return nil, err
	}
	// List is newest first; walk backwards for the oldest unbound.
	for i := len(licenses) - 1; i >= 0; i-- {
		if licenses[i].EdgeServerID == nil {
			return &edges.LicenseLink{ID: licenses[i].ID, OrganizationID: licenses[i].OrganizationID}, nil
		}
	}
	return nil, nil
}

// BindEdge attaches or detaches a license from an edge server.
func (d *EdgeDirectory) BindEdge(ctx context.Context, licenseID int64, edgeServerID *int64) error {
	l, err := d.repo.Get(ctx, licenseID)
	if err != nil {
		return err
	}
	l.EdgeServerID = edgeServerID
	return d.repo.Update(ctx, l)
}

var _ edges.LicenseDirectory = (*EdgeDirectory)(nil)
