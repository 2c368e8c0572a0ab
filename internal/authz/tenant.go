package authz

// TenantAccess is the outcome of resolving a principal against the
// tenant that owns a target resource.
type TenantAccess struct {
	Allowed     bool
	CrossTenant bool
}

// ResolveTenantAccess decides whether a principal may touch a resource
// owned by resourceOrgID. Super-admins bypass tenant scoping entirely.
// Everyone else must carry an organization, and the organizations must
// match when the resource names one. A nil resourceOrgID means the
// target is not pinned to a specific organization (listings scoped to
// the caller's own tenant); membership alone suffices there.
func ResolveTenantAccess(p Principal, resourceOrgID *int64) TenantAccess {
	if p == nil {
		return TenantAccess{}
	}
	if p.SuperAdmin() {
		return TenantAccess{Allowed: true}
	}
	orgID, ok := p.Tenant()
	if !ok {
		return TenantAccess{}
	}
	if resourceOrgID != nil && *resourceOrgID != orgID {
		return TenantAccess{CrossTenant: true}
	}
	return TenantAccess{Allowed: true}
}
