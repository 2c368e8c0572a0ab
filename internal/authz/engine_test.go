package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func orgID(id int64) *int64 { return &id }

func userIn(org int64, role string) UserPrincipal {
	return UserPrincipal{ID: 100, OrganizationID: orgID(org), Role: role, IsActive: true}
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	d := Authorize(nil, ActionView, Target{Type: ResourceCamera, OrganizationID: orgID(1)})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnauthenticated, d.Reason)
}

func TestAuthorizeSuperAdminBypassesEverything(t *testing.T) {
	super := UserPrincipal{ID: 1, Role: "super_admin"}
	flagged := UserPrincipal{ID: 2, Role: "viewer", IsSuperAdmin: true}
	for _, p := range []UserPrincipal{super, flagged} {
		for _, action := range []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionManage} {
			d := Authorize(p, action, Target{Type: ResourceCamera, OrganizationID: orgID(42)})
			assert.True(t, d.Allowed, "action %s", action)
		}
	}
}

func TestAuthorizeCrossTenantAlwaysDenied(t *testing.T) {
	p := userIn(1, "owner")
	for _, action := range []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionManage} {
		d := Authorize(p, action, Target{Type: ResourceCamera, OrganizationID: orgID(2)})
		assert.False(t, d.Allowed, "action %s", action)
		assert.Equal(t, ReasonCrossTenant, d.Reason)
	}
}

func TestAuthorizeOrglessUserDenied(t *testing.T) {
	p := UserPrincipal{ID: 5, Role: "owner", IsActive: true}
	d := Authorize(p, ActionCreate, Target{Type: ResourceCamera, OrganizationID: orgID(1)})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCrossTenant, d.Reason)
}

func TestAuthorizeCameraThresholds(t *testing.T) {
	target := Target{Type: ResourceCamera, OrganizationID: orgID(1)}

	viewer := userIn(1, "viewer")
	assert.True(t, Authorize(viewer, ActionView, target).Allowed)
	assert.False(t, Authorize(viewer, ActionCreate, target).Allowed)

	editor := userIn(1, "editor")
	assert.True(t, Authorize(editor, ActionCreate, target).Allowed)
	assert.True(t, Authorize(editor, ActionUpdate, target).Allowed)
	deleted := Authorize(editor, ActionDelete, target)
	assert.False(t, deleted.Allowed)
	assert.Equal(t, ReasonRole, deleted.Reason)

	admin := userIn(1, "admin")
	assert.True(t, Authorize(admin, ActionDelete, target).Allowed)
	assert.True(t, Authorize(admin, ActionManage, target).Allowed)
}

func TestAuthorizeLegacyRoleSpellings(t *testing.T) {
	target := Target{Type: ResourceCamera, OrganizationID: orgID(1)}
	operator := userIn(1, "org_operator")
	assert.True(t, Authorize(operator, ActionUpdate, target).Allowed)
	legacyUser := userIn(1, "user")
	assert.False(t, Authorize(legacyUser, ActionUpdate, target).Allowed)
	assert.True(t, Authorize(legacyUser, ActionView, target).Allowed)
}

func TestAuthorizeSelfProfileUpdateAllowed(t *testing.T) {
	p := userIn(1, "viewer")
	d := Authorize(p, ActionUpdate, Target{Type: ResourceUser, OrganizationID: orgID(1), UserID: p.ID})
	assert.True(t, d.Allowed)
}

func TestAuthorizeSelfDeleteDenied(t *testing.T) {
	p := userIn(1, "owner")
	for _, action := range []Action{ActionDelete, ActionManage} {
		d := Authorize(p, action, Target{Type: ResourceUser, OrganizationID: orgID(1), UserID: p.ID})
		assert.False(t, d.Allowed, "action %s", action)
		assert.Equal(t, ReasonSelfAction, d.Reason)
	}
}

func TestAuthorizeSelfDeleteDeniedEvenForSuperAdmin(t *testing.T) {
	p := UserPrincipal{ID: 7, Role: "super_admin"}
	d := Authorize(p, ActionDelete, Target{Type: ResourceUser, UserID: 7})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonSelfAction, d.Reason)
}

func TestAuthorizeUserAdministrationRequiresManager(t *testing.T) {
	target := Target{Type: ResourceUser, OrganizationID: orgID(1), UserID: 200}
	editor := userIn(1, "editor")
	assert.False(t, Authorize(editor, ActionUpdate, target).Allowed)
	assert.False(t, Authorize(editor, ActionDelete, target).Allowed)
	admin := userIn(1, "admin")
	assert.True(t, Authorize(admin, ActionUpdate, target).Allowed)
	assert.True(t, Authorize(admin, ActionDelete, target).Allowed)
	assert.True(t, Authorize(admin, ActionManage, target).Allowed)
}

func TestAuthorizeOrganizationLifecycleSuperAdminOnly(t *testing.T) {
	owner := userIn(1, "owner")
	for _, action := range []Action{ActionCreate, ActionDelete, ActionManage} {
		d := Authorize(owner, action, Target{Type: ResourceOrganization, OrganizationID: orgID(1)})
		assert.False(t, d.Allowed, "action %s", action)
		assert.Equal(t, ReasonRole, d.Reason)
	}
	super := UserPrincipal{ID: 1, Role: "super_admin"}
	assert.True(t, Authorize(super, ActionCreate, Target{Type: ResourceOrganization}).Allowed)
}

func TestAuthorizeOrganizationUpdateByManagers(t *testing.T) {
	target := Target{Type: ResourceOrganization, OrganizationID: orgID(1)}
	assert.True(t, Authorize(userIn(1, "admin"), ActionUpdate, target).Allowed)
	assert.False(t, Authorize(userIn(1, "editor"), ActionUpdate, target).Allowed)
}

func TestAuthorizeLicenseLifecycleSuperAdminOnly(t *testing.T) {
	owner := userIn(1, "owner")
	target := Target{Type: ResourceLicense, OrganizationID: orgID(1)}
	assert.True(t, Authorize(owner, ActionView, target).Allowed)
	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete, ActionManage} {
		assert.False(t, Authorize(owner, action, target).Allowed, "action %s", action)
	}
}

func TestAuthorizeDevicePrincipal(t *testing.T) {
	device := DevicePrincipal{OrganizationID: 1, EdgeServerID: 9, EdgeKey: "edge_abc"}
	sameOrg := Target{Type: ResourceCamera, OrganizationID: orgID(1)}
	otherOrg := Target{Type: ResourceCamera, OrganizationID: orgID(2)}

	assert.True(t, Authorize(device, ActionView, sameOrg).Allowed)
	assert.True(t, Authorize(device, ActionCreate, Target{Type: ResourceEvent, OrganizationID: orgID(1)}).Allowed)
	cross := Authorize(device, ActionView, otherOrg)
	assert.False(t, cross.Allowed)
	assert.Equal(t, ReasonCrossTenant, cross.Reason)
	assert.False(t, Authorize(device, ActionDelete, sameOrg).Allowed)
	assert.False(t, device.SuperAdmin())
}
