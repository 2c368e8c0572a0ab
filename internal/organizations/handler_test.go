package organizations

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

type memoryRepo struct {
	orgs   map[int64]*Organization
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orgs: make(map[int64]*Organization), nextID: 1}
}

func (r *memoryRepo) List(ctx context.Context) ([]Organization, error) {
	var out []Organization
	for _, o := range r.orgs {
		out = append(out, *o)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Organization, error) {
	o, ok := r.orgs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *memoryRepo) Create(ctx context.Context, o *Organization) (*Organization, error) {
	for _, existing := range r.orgs {
		if existing.Slug == o.Slug {
			return nil, shared.ErrConflict
		}
	}
	clone := *o
	clone.ID = r.nextID
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	r.nextID++
	r.orgs[clone.ID] = &clone
	result := clone
	return &result, nil
}

func (r *memoryRepo) Update(ctx context.Context, o *Organization) error {
	if _, ok := r.orgs[o.ID]; !ok {
		return shared.ErrNotFound
	}
	clone := *o
	r.orgs[o.ID] = &clone
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	o, ok := r.orgs[id]
	if !ok {
		return shared.ErrNotFound
	}
	o.IsActive = active
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.orgs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.orgs, id)
	return nil
}

func newTestHandler(t *testing.T, repo Repository) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo, nil, nil))
	r := chi.NewRouter()
	r.Route("/organizations", handler.MountRoutes)
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

func orgID(id int64) *int64 {
	return &id
}

func seedOrg(t *testing.T, repo *memoryRepo, name, slug string) *Organization {
	t.Helper()
	created, err := repo.Create(context.Background(), &Organization{Name: name, Slug: slug, IsActive: true})
	require.NoError(t, err)
	return created
}

func TestCreateSuperAdminOnly(t *testing.T) {
	h := newTestHandler(t, newMemoryRepo())

	payload := `{"name":"Acme Security"}`
	res := serve(t, h, http.MethodPost, "/organizations", payload, authz.UserPrincipal{ID: 1, OrganizationID: orgID(1), Role: "owner"})
	require.Equal(t, http.StatusForbidden, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "forbidden_role", body["error"])

	res = serve(t, h, http.MethodPost, "/organizations", payload, authz.UserPrincipal{ID: 2, Role: "super_admin"})
	require.Equal(t, http.StatusCreated, res.Code)

	var created orgResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, "acme-security", created.Slug)
	assert.True(t, created.IsActive)
}

func TestDeleteSuperAdminOnly(t *testing.T) {
	repo := newMemoryRepo()
	seedOrg(t, repo, "Acme", "acme")
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodDelete, "/organizations/1", "", authz.UserPrincipal{ID: 1, OrganizationID: orgID(1), Role: "owner"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = serve(t, h, http.MethodDelete, "/organizations/1", "", authz.UserPrincipal{ID: 2, Role: "super_admin"})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestUpdateOwnOrganizationByAdmin(t *testing.T) {
	repo := newMemoryRepo()
	seedOrg(t, repo, "Acme", "acme")
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodPut, "/organizations/1", `{"name":"Acme Corp"}`, authz.UserPrincipal{ID: 1, OrganizationID: orgID(1), Role: "admin"})
	require.Equal(t, http.StatusOK, res.Code)

	var body orgResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "Acme Corp", body.Name)
}

func TestUpdateRequiresAdmin(t *testing.T) {
	repo := newMemoryRepo()
	seedOrg(t, repo, "Acme", "acme")
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodPut, "/organizations/1", `{"name":"X"}`, authz.UserPrincipal{ID: 1, OrganizationID: orgID(1), Role: "editor"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestUpdateCrossTenantDenied(t *testing.T) {
	repo := newMemoryRepo()
	seedOrg(t, repo, "Acme", "acme")
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodPut, "/organizations/1", `{"name":"X"}`, authz.UserPrincipal{ID: 1, OrganizationID: orgID(2), Role: "owner"})
	require.Equal(t, http.StatusForbidden, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "forbidden_cross_tenant", body["error"])
}

func TestListScoping(t *testing.T) {
	repo := newMemoryRepo()
	seedOrg(t, repo, "One", "one")
	seedOrg(t, repo, "Two", "two")
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodGet, "/organizations", "", authz.UserPrincipal{ID: 1, Role: "super_admin"})
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)

	res = serve(t, h, http.MethodGet, "/organizations", "", authz.UserPrincipal{ID: 2, OrganizationID: orgID(1), Role: "viewer"})
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
}

func TestToggleActiveSuperAdminOnly(t *testing.T) {
	repo := newMemoryRepo()
	created := seedOrg(t, repo, "Acme", "acme")
	h := newTestHandler(t, repo)

	res := serve(t, h, http.MethodPost, "/organizations/1/toggle-active", "", authz.UserPrincipal{ID: 1, OrganizationID: orgID(1), Role: "owner"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = serve(t, h, http.MethodPost, "/organizations/1/toggle-active", "", authz.UserPrincipal{ID: 2, Role: "super_admin"})
	require.Equal(t, http.StatusOK, res.Code)

	got, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
