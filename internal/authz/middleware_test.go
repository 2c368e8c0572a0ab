package authz_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-vms/argus-cloud/internal/authz"
)

func nextOK() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler, p authz.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
	if p != nil {
		req = req.WithContext(authz.ContextWithPrincipal(req.Context(), p))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func errorCode(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

func TestRequireAuthenticated(t *testing.T) {
	mw := authz.Middleware{}

	res := doRequest(t, mw.RequireAuthenticated(nextOK()), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, res))

	org := int64(1)
	res = doRequest(t, mw.RequireAuthenticated(nextOK()), authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "viewer"})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	mw := authz.Middleware{}
	org := int64(1)

	res := doRequest(t, mw.RequireSuperAdmin(nextOK()), authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "owner"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "forbidden_role", errorCode(t, res))

	res = doRequest(t, mw.RequireSuperAdmin(nextOK()), authz.UserPrincipal{ID: 1, Role: "viewer", IsSuperAdmin: true})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireRoleHierarchy(t *testing.T) {
	mw := authz.Middleware{}
	org := int64(1)
	handler := mw.RequireRole("editor")(nextOK())

	res := doRequest(t, handler, authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "viewer"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	// Owner outranks editor, legacy spelling included.
	res = doRequest(t, handler, authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "org_owner"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = doRequest(t, handler, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireOrgMember(t *testing.T) {
	mw := authz.Middleware{}
	org := int64(1)

	res := doRequest(t, mw.RequireOrgMember(nextOK()), authz.UserPrincipal{ID: 1, Role: "owner"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "forbidden_cross_tenant", errorCode(t, res))

	res = doRequest(t, mw.RequireOrgMember(nextOK()), authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "viewer"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = doRequest(t, mw.RequireOrgMember(nextOK()), authz.UserPrincipal{ID: 1, Role: "super_admin"})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireOrgManager(t *testing.T) {
	mw := authz.Middleware{}
	org := int64(1)

	res := doRequest(t, mw.RequireOrgManager(nextOK()), authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "editor"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(t, mw.RequireOrgManager(nextOK()), authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "org_admin"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = doRequest(t, mw.RequireOrgManager(nextOK()), authz.DevicePrincipal{OrganizationID: 1, EdgeServerID: 2})
	assert.Equal(t, http.StatusForbidden, res.Code)
}
