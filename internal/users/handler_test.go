package users

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-vms/argus-cloud/internal/authz"
)

func newTestHandler(t *testing.T, repo Repository) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo, nil, nil))
	r := chi.NewRouter()
	r.Route("/users", handler.MountRoutes)
	return r
}

func serve(t *testing.T, h http.Handler, method, target, body string, p authz.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		req = req.WithContext(authz.ContextWithPrincipal(req.Context(), p))
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func seedUser(t *testing.T, repo *memoryRepo, email, role string, org *int64) *User {
	t.Helper()
	created, err := repo.Create(context.Background(), &User{Email: email, Name: email, Role: role, OrganizationID: org, IsActive: true})
	require.NoError(t, err)
	return created
}

func TestListScopedByTenant(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "a@one.example", "viewer", orgID(1))
	seedUser(t, repo, "b@two.example", "viewer", orgID(2))
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodGet, "/users", "", authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "admin"})
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Data  []userResponse `json:"data"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "a@one.example", body.Data[0].Email)
}

func TestCreateScopedToOwnTenant(t *testing.T) {
	repo := newMemoryRepo()
	h := newTestHandler(t, repo)

	// organization_id in the payload is ignored for tenant admins.
	payload := `{"email":"new@one.example","name":"New","password":"supersecret","role":"editor","organization_id":2}`
	res := serve(t, h, http.MethodPost, "/users", payload, authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "admin"})
	require.Equal(t, http.StatusCreated, res.Code)

	var body userResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotNil(t, body.OrganizationID)
	assert.Equal(t, int64(1), *body.OrganizationID)
}

func TestCreateRequiresAdmin(t *testing.T) {
	h := newTestHandler(t, newMemoryRepo())

	payload := `{"email":"new@one.example","name":"New","password":"supersecret","role":"viewer"}`
	res := serve(t, h, http.MethodPost, "/users", payload, authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "editor"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRoleCeiling(t *testing.T) {
	h := newTestHandler(t, newMemoryRepo())

	// An admin cannot mint an owner.
	payload := `{"email":"new@one.example","name":"New","password":"supersecret","role":"owner"}`
	res := serve(t, h, http.MethodPost, "/users", payload, authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "admin"})
	require.Equal(t, http.StatusForbidden, res.Code)

	// Nobody mints a super_admin through this API.
	payload = `{"email":"new@one.example","name":"New","password":"supersecret","role":"super_admin","organization_id":1}`
	res = serve(t, h, http.MethodPost, "/users", payload, authz.UserPrincipal{ID: 9, Role: "super_admin"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestSelfProfileUpdateAllowedButRoleChangeDenied(t *testing.T) {
	repo := newMemoryRepo()
	me := seedUser(t, repo, "me@one.example", "viewer", orgID(1))
	h := newTestHandler(t, repo)

	self := authz.UserPrincipal{ID: me.ID, OrganizationID: orgID(1), Role: "viewer"}

	res := serve(t, h, http.MethodPut, "/users/1", `{"name":"Renamed"}`, self)
	require.Equal(t, http.StatusOK, res.Code)

	res = serve(t, h, http.MethodPut, "/users/1", `{"role":"admin"}`, self)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestSelfDeleteAndDeactivateDenied(t *testing.T) {
	repo := newMemoryRepo()
	me := seedUser(t, repo, "me@one.example", "owner", orgID(1))
	h := newTestHandler(t, repo)

	self := authz.UserPrincipal{ID: me.ID, OrganizationID: orgID(1), Role: "owner"}

	res := serve(t, h, http.MethodDelete, "/users/1", "", self)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = serve(t, h, http.MethodPost, "/users/1/toggle-active", "", self)
	assert.Equal(t, http.StatusForbidden, res.Code)

	// Even super-admins cannot remove themselves.
	superSelf := authz.UserPrincipal{ID: me.ID, Role: "super_admin"}
	res = serve(t, h, http.MethodDelete, "/users/1", "", superSelf)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestCrossTenantUpdateDenied(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "other@two.example", "viewer", orgID(2))
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodPut, "/users/1", `{"name":"X"}`, authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "admin"})
	require.Equal(t, http.StatusForbidden, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "forbidden_cross_tenant", body["error"])
}

func TestToggleActive(t *testing.T) {
	repo := newMemoryRepo()
	target := seedUser(t, repo, "target@one.example", "viewer", orgID(1))
	h := newTestHandler(t, repo)

	admin := authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "admin"}
	res := serve(t, h, http.MethodPost, "/users/1/toggle-active", "", admin)
	require.Equal(t, http.StatusOK, res.Code)

	got, err := repo.Get(context.Background(), target.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCreateDuplicateEmailConflict(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "dup@one.example", "viewer", orgID(1))
	h := newTestHandler(t, repo)

	payload := `{"email":"dup@one.example","name":"Dup","password":"supersecret","role":"viewer"}`
	res := serve(t, h, http.MethodPost, "/users", payload, authz.UserPrincipal{ID: 9, OrganizationID: orgID(1), Role: "admin"})
	assert.Equal(t, http.StatusConflict, res.Code)
}
