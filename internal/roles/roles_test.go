package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonical(t *testing.T) {
	for _, role := range All() {
		assert.Equal(t, role, Normalize(string(role)))
	}
}

func TestNormalizeLegacyAliases(t *testing.T) {
	cases := map[string]Role{
		"org_owner":    Owner,
		"org_admin":    Admin,
		"org_operator": Editor,
		"org_viewer":   Viewer,
		"user":         Viewer,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "alias %q", raw)
	}
}

func TestNormalizeTrimsAndLowers(t *testing.T) {
	assert.Equal(t, Owner, Normalize("  ORG_OWNER  "))
	assert.Equal(t, Admin, Normalize("Admin"))
}

func TestNormalizeUnknownDefaultsToViewer(t *testing.T) {
	for _, raw := range []string{"", "root", "manager", "superuser", "42"} {
		assert.Equal(t, Viewer, Normalize(raw), "raw %q", raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"super_admin", "ORG_ADMIN", "user", "garbage", "", " viewer "}
	for _, raw := range inputs {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(string(once)), "raw %q", raw)
	}
}

func TestRankStrictOrder(t *testing.T) {
	ordered := All()
	for i := 1; i < len(ordered); i++ {
		require.Greater(t, Rank(string(ordered[i-1])), Rank(string(ordered[i])))
	}
}

func TestAtLeastReflexiveAndTransitive(t *testing.T) {
	all := All()
	for _, r := range all {
		assert.True(t, AtLeast(string(r), string(r)), "reflexive %s", r)
	}
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				if AtLeast(string(a), string(b)) && AtLeast(string(b), string(c)) {
					assert.True(t, AtLeast(string(a), string(c)), "%s >= %s >= %s", a, b, c)
				}
			}
		}
	}
}

func TestIsSuperAdmin(t *testing.T) {
	assert.True(t, IsSuperAdmin("viewer", true))
	assert.True(t, IsSuperAdmin("", true))
	assert.True(t, IsSuperAdmin("super_admin", false))
	assert.True(t, IsSuperAdmin(" SUPER_ADMIN ", false))
	assert.False(t, IsSuperAdmin("viewer", false))
	assert.False(t, IsSuperAdmin("owner", false))
}

func TestDerivedPredicatesMonotone(t *testing.T) {
	// Widening rank must never remove a capability held at a lower rank.
	preds := []func(string) bool{CanView, CanEdit, CanManageOrganization}
	ordered := All()
	for _, pred := range preds {
		for i := 1; i < len(ordered); i++ {
			lower := string(ordered[i])
			higher := string(ordered[i-1])
			if pred(lower) {
				assert.True(t, pred(higher), "capability lost between %s and %s", lower, higher)
			}
		}
	}
}

func TestCapabilityThresholds(t *testing.T) {
	assert.True(t, CanManageOrganization("admin"))
	assert.True(t, CanManageOrganization("owner"))
	assert.False(t, CanManageOrganization("editor"))
	assert.True(t, CanEdit("editor"))
	assert.False(t, CanEdit("viewer"))
	assert.True(t, CanView("viewer"))
	assert.True(t, CanView("org_viewer"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Super Admin", Label("super_admin"))
	assert.Equal(t, "Viewer", Label("nonsense"))
	assert.Equal(t, "Editor", Label("org_operator"))
}
