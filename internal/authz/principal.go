package authz

import "github.com/argus-vms/argus-cloud/internal/roles"

// Principal identifies the caller of a single request. It is either a
// logged-in user or an HMAC-authenticated edge device, lives only for
// the duration of the request, and is never persisted.
type Principal interface {
	// Tenant returns the organization the principal acts for, if any.
	Tenant() (int64, bool)
	// SuperAdmin reports whether the principal bypasses tenant scoping.
	SuperAdmin() bool

	principal()
}

// UserPrincipal is a human caller resolved from a session.
type UserPrincipal struct {
	ID             int64
	OrganizationID *int64
	Role           string
	IsSuperAdmin   bool
	IsActive       bool
}

func (u UserPrincipal) Tenant() (int64, bool) {
	if u.OrganizationID == nil {
		return 0, false
	}
	return *u.OrganizationID, true
}

func (u UserPrincipal) SuperAdmin() bool {
	return roles.IsSuperAdmin(u.Role, u.IsSuperAdmin)
}

func (UserPrincipal) principal() {}

// DevicePrincipal is an edge server authenticated per request via HMAC.
// Its organization is fixed at registration and it is never super-admin.
type DevicePrincipal struct {
	OrganizationID int64
	EdgeServerID   int64
	EdgeKey        string
}

func (d DevicePrincipal) Tenant() (int64, bool) {
	return d.OrganizationID, true
}

func (DevicePrincipal) SuperAdmin() bool { return false }

func (DevicePrincipal) principal() {}
