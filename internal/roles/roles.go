package roles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is a canonical platform role.
type Role string

// Canonical roles, ordered by rank.
const (
	SuperAdmin Role = "super_admin"
	Owner      Role = "owner"
	Admin      Role = "admin"
	Editor     Role = "editor"
	Viewer     Role = "viewer"
)

// rank maps each canonical role to its hierarchy level. Higher wins.
var rank = map[Role]int{
	SuperAdmin: 5,
	Owner:      4,
	Admin:      3,
	Editor:     2,
	Viewer:     1,
}

// legacyAliases maps pre-migration role spellings to canonical roles.
var legacyAliases = map[string]Role{
	"org_owner":    Owner,
	"org_admin":    Admin,
	"org_operator": Editor,
	"org_viewer":   Viewer,
	"user":         Viewer,
}

var titleCaser = cases.Title(language.English)

// All returns the canonical role set in rank order.
func All() []Role {
	return []Role{SuperAdmin, Owner, Admin, Editor, Viewer}
}

// Normalize lowers and trims a raw role string and resolves legacy
// aliases. Unknown values fall back to Viewer, so the result is always a
// canonical role and re-normalizing is a no-op.
func Normalize(raw string) Role {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := rank[Role(cleaned)]; ok {
		return Role(cleaned)
	}
	if mapped, ok := legacyAliases[cleaned]; ok {
		return mapped
	}
	return Viewer
}

// Rank returns the hierarchy level of a role after normalization.
func Rank(role string) int {
	return rank[Normalize(role)]
}

// AtLeast reports whether userRole carries at least the permissions of
// requiredRole.
func AtLeast(userRole, requiredRole string) bool {
	return Rank(userRole) >= Rank(requiredRole)
}

// IsSuperAdmin reports super-admin status. The explicit flag takes
// precedence over the textual role column so either source can grant it.
func IsSuperAdmin(role string, explicitFlag bool) bool {
	if explicitFlag {
		return true
	}
	return Normalize(role) == SuperAdmin
}

// CanManageOrganization reports whether the role may manage
// organization-level resources (admin and above).
func CanManageOrganization(role string) bool {
	return AtLeast(role, string(Admin))
}

// CanEdit reports whether the role may create or modify tenant resources
// (editor and above).
func CanEdit(role string) bool {
	return AtLeast(role, string(Editor))
}

// CanView reports whether the role may read tenant resources. Every
// canonical role can.
func CanView(role string) bool {
	return AtLeast(role, string(Viewer))
}

// IsValid reports whether the raw value resolves to a canonical role.
// Normalization is total, so this is always true; kept for request
// validation call sites that want the intent spelled out.
func IsValid(raw string) bool {
	_, ok := rank[Normalize(raw)]
	return ok
}

// Label returns a human readable display name for a role.
func Label(role string) string {
	normalized := Normalize(role)
	return titleCaser.String(strings.ReplaceAll(string(normalized), "_", " "))
}
