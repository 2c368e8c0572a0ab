package authz

import "github.com/argus-vms/argus-cloud/internal/roles"

// Action is an operation evaluated against a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Resource names a resource type gated by the engine.
type Resource string

const (
	ResourceCamera       Resource = "camera"
	ResourceEdgeServer   Resource = "edge_server"
	ResourceEvent        Resource = "event"
	ResourceUser         Resource = "user"
	ResourceOrganization Resource = "organization"
	ResourceLicense      Resource = "license"
)

// DenyReason is the machine code surfaced to clients on denial.
type DenyReason string

const (
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonCrossTenant     DenyReason = "forbidden_cross_tenant"
	ReasonRole            DenyReason = "forbidden_role"
	ReasonSelfAction      DenyReason = "forbidden_self_action"
)

// Decision is the verdict of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with a reason code.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Target describes what an action is applied to.
type Target struct {
	Type Resource
	// OrganizationID is the tenant owning the target, nil for
	// platform-wide targets and tenant-unspecific listings.
	OrganizationID *int64
	// UserID is the subject user when Type is ResourceUser; the self
	// rules key off it.
	UserID int64
}

// requiredRole is the minimum rank per action for the common
// tenant-scoped resources: anyone views, editors write, managers delete.
var requiredRole = map[Action]roles.Role{
	ActionView:   roles.Viewer,
	ActionCreate: roles.Editor,
	ActionUpdate: roles.Editor,
	ActionDelete: roles.Admin,
	ActionManage: roles.Admin,
}

// userActionRole tightens user administration: only organization
// managers create, update, delete or deactivate other accounts.
var userActionRole = map[Action]roles.Role{
	ActionView:   roles.Viewer,
	ActionCreate: roles.Admin,
	ActionUpdate: roles.Admin,
	ActionDelete: roles.Admin,
	ActionManage: roles.Admin,
}

// orgActionRole covers what tenant roles may still do to their own
// organization; everything else on organizations is super-admin-only.
var orgActionRole = map[Action]roles.Role{
	ActionView:   roles.Viewer,
	ActionUpdate: roles.Admin,
}

// Authorize evaluates a principal performing an action on a target and
// returns Allow or a Deny with a stable reason code. Checks run in a
// fixed short-circuit order: authentication, self rules, super-admin
// bypass, super-admin-only operations, tenant scoping, then role rank.
func Authorize(p Principal, action Action, target Target) Decision {
	if p == nil {
		return Deny(ReasonUnauthenticated)
	}

	// Nobody deletes or deactivates their own account, super-admins
	// included.
	if target.Type == ResourceUser && (action == ActionDelete || action == ActionManage) {
		if user, ok := p.(UserPrincipal); ok && user.ID == target.UserID {
			return Deny(ReasonSelfAction)
		}
	}

	if p.SuperAdmin() {
		return Allow
	}

	if superAdminOnly(action, target.Type) {
		return Deny(ReasonRole)
	}

	// Users always manage their own profile, regardless of rank.
	if target.Type == ResourceUser && action == ActionUpdate {
		if user, ok := p.(UserPrincipal); ok && user.ID == target.UserID {
			return Allow
		}
	}

	access := ResolveTenantAccess(p, target.OrganizationID)
	if !access.Allowed {
		return Deny(ReasonCrossTenant)
	}

	if !hasRank(p, action, target.Type) {
		return Deny(ReasonRole)
	}

	return Allow
}

// superAdminOnly lists operations no tenant role may perform:
// organizations are created, deleted and toggled only by platform
// operators, and license lifecycle actions stay with them too.
func superAdminOnly(action Action, resource Resource) bool {
	switch resource {
	case ResourceOrganization:
		return action == ActionCreate || action == ActionDelete || action == ActionManage
	case ResourceLicense:
		return action != ActionView
	}
	return false
}

func hasRank(p Principal, action Action, resource Resource) bool {
	user, ok := p.(UserPrincipal)
	if !ok {
		// Devices read and report within their own organization but
		// never administer it.
		return action == ActionView || action == ActionCreate || action == ActionUpdate
	}
	table := requiredRole
	switch resource {
	case ResourceUser:
		table = userActionRole
	case ResourceOrganization:
		table = orgActionRole
	}
	required, ok := table[action]
	if !ok {
		return false
	}
	return roles.AtLeast(user.Role, string(required))
}
