package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTenantAccessNilPrincipal(t *testing.T) {
	access := ResolveTenantAccess(nil, orgID(1))
	assert.False(t, access.Allowed)
	assert.False(t, access.CrossTenant)
}

func TestResolveTenantAccessSuperAdmin(t *testing.T) {
	super := UserPrincipal{ID: 1, Role: "super_admin"}
	access := ResolveTenantAccess(super, orgID(99))
	assert.True(t, access.Allowed)
	assert.False(t, access.CrossTenant)
}

func TestResolveTenantAccessMatch(t *testing.T) {
	p := userIn(3, "viewer")
	access := ResolveTenantAccess(p, orgID(3))
	assert.True(t, access.Allowed)
}

func TestResolveTenantAccessMismatch(t *testing.T) {
	p := userIn(3, "owner")
	access := ResolveTenantAccess(p, orgID(4))
	assert.False(t, access.Allowed)
	assert.True(t, access.CrossTenant)
}

func TestResolveTenantAccessNoTenant(t *testing.T) {
	p := UserPrincipal{ID: 5, Role: "owner"}
	access := ResolveTenantAccess(p, orgID(1))
	assert.False(t, access.Allowed)
	access = ResolveTenantAccess(p, nil)
	assert.False(t, access.Allowed)
}

func TestResolveTenantAccessUnpinnedTarget(t *testing.T) {
	p := userIn(3, "viewer")
	access := ResolveTenantAccess(p, nil)
	assert.True(t, access.Allowed)
}

func TestResolveTenantAccessDevice(t *testing.T) {
	device := DevicePrincipal{OrganizationID: 7, EdgeServerID: 1}
	assert.True(t, ResolveTenantAccess(device, orgID(7)).Allowed)
	access := ResolveTenantAccess(device, orgID(8))
	assert.False(t, access.Allowed)
	assert.True(t, access.CrossTenant)
}
