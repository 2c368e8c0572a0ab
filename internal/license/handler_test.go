package license

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
)

func newTestHandler(t *testing.T, repo Repository, at time.Time) http.Handler {
	t.Helper()
	svc := newTestService(t, repo, at)
	handler := NewHandler(discardLogger(), svc)
	r := chi.NewRouter()
	r.Route("/licenses", handler.MountRoutes)
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, h http.Handler, method, target string, body string, p authz.Principal) *httptest.ResponseRecorder {
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

func TestListScopedByTenant(t *testing.T) {
	now := time.Now()
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), &License{OrganizationID: 1, Status: StatusActive, Plan: "pro"})
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), &License{OrganizationID: 2, Status: StatusActive, Plan: "pro"})
	require.NoError(t, err)
	h := newTestHandler(t, repo, now)

	org := int64(1)
	res := serve(t, h, http.MethodGet, "/licenses", "", authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "owner"})
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Data  []licenseResponse `json:"data"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, int64(1), body.Data[0].OrganizationID)
}

func TestListSuperAdminSeesAll(t *testing.T) {
	now := time.Now()
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), &License{OrganizationID: 1, Status: StatusActive})
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), &License{OrganizationID: 2, Status: StatusSuspended})
	require.NoError(t, err)
	h := newTestHandler(t, repo, now)

	res := serve(t, h, http.MethodGet, "/licenses", "", authz.UserPrincipal{ID: 1, Role: "super_admin"})
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)

	res = serve(t, h, http.MethodGet, "/licenses?organization_id=2&status=suspended", "", authz.UserPrincipal{ID: 1, Role: "super_admin"})
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
}

func TestListOrglessUserGetsEmptyPage(t *testing.T) {
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), &License{OrganizationID: 1, Status: StatusActive})
	require.NoError(t, err)
	h := newTestHandler(t, repo, time.Now())

	res := serve(t, h, http.MethodGet, "/licenses", "", authz.UserPrincipal{ID: 1, Role: "owner"})
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Total)
}

func TestLifecycleEndpointsSuperAdminOnly(t *testing.T) {
	repo := newMemoryRepo()
	created, err := repo.Create(context.Background(), &License{OrganizationID: 1, Status: StatusTrial})
	require.NoError(t, err)
	h := newTestHandler(t, repo, time.Now())

	org := int64(1)
	owner := authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "owner"}

	res := serve(t, h, http.MethodPost, "/licenses/1/activate", "", owner)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = serve(t, h, http.MethodPost, "/licenses/1/activate", "", authz.UserPrincipal{ID: 2, Role: "super_admin"})
	require.Equal(t, http.StatusOK, res.Code)

	got, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestRenewEndpoint(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), &License{OrganizationID: 1, Status: StatusExpired, ExpiresAt: daysAgo(now, 90)})
	require.NoError(t, err)
	h := newTestHandler(t, repo, now)

	payload := `{"expires_at":"2027-03-01T00:00:00Z"}`
	res := serve(t, h, http.MethodPost, "/licenses/1/renew", payload, authz.UserPrincipal{ID: 2, Role: "super_admin"})
	require.Equal(t, http.StatusOK, res.Code)

	var body licenseResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, string(StatusActive), body.Status)
	require.NotNil(t, body.ExpiresAt)
	assert.Equal(t, 2027, body.ExpiresAt.Year())
}

func TestRenewRequiresExpiry(t *testing.T) {
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), &License{OrganizationID: 1, Status: StatusActive})
	require.NoError(t, err)
	h := newTestHandler(t, repo, time.Now())

	res := serve(t, h, http.MethodPost, "/licenses/1/renew", `{}`, authz.UserPrincipal{ID: 2, Role: "super_admin"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestShowCrossTenantDenied(t *testing.T) {
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), &License{OrganizationID: 2, Status: StatusActive})
	require.NoError(t, err)
	h := newTestHandler(t, repo, time.Now())

	org := int64(1)
	res := serve(t, h, http.MethodGet, "/licenses/1", "", authz.UserPrincipal{ID: 1, OrganizationID: &org, Role: "owner"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestShowNotFound(t *testing.T) {
	h := newTestHandler(t, newMemoryRepo(), time.Now())
	res := serve(t, h, http.MethodGet, "/licenses/42", "", authz.UserPrincipal{ID: 1, Role: "super_admin"})
	assert.Equal(t, http.StatusNotFound, res.Code)
}
