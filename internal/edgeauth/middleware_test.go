package edgeauth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/edgeauth"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

type mapStore map[string]*edgeauth.Device

func (m mapStore) FindByKey(ctx context.Context, key string) (*edgeauth.Device, error) {
	if d, ok := m[key]; ok {
		return d, nil
	}
	return nil, shared.ErrNotFound
}

func signHeaders(req *http.Request, device *edgeauth.Device, at time.Time, body string) {
	ts := strconv.FormatInt(at.Unix(), 10)
	req.Header.Set(edgeauth.HeaderEdgeKey, device.EdgeKey)
	req.Header.Set(edgeauth.HeaderEdgeTimestamp, ts)
	req.Header.Set(edgeauth.HeaderEdgeSignature,
		edgeauth.Sign(device.EdgeSecret, edgeauth.CanonicalString(req.Method, req.URL.Path, ts, []byte(body))))
}

func TestAuthenticateMiddleware(t *testing.T) {
	device := &edgeauth.Device{ID: 4, OrganizationID: 11, EdgeKey: "edge_mw", EdgeSecret: "s3cret"}
	verifier := edgeauth.NewVerifier(mapStore{device.EdgeKey: device}, nil)
	mw := edgeauth.Middleware{Verifier: verifier}

	var captured authz.Principal
	var seenBody []byte
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = authz.PrincipalFromContext(r.Context())
		seenBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"status":"online"}`
	req := httptest.NewRequest(http.MethodPost, "/edges/heartbeat", strings.NewReader(body))
	signHeaders(req, device, time.Now(), body)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	principal, ok := captured.(authz.DevicePrincipal)
	require.True(t, ok)
	assert.Equal(t, int64(11), principal.OrganizationID)
	assert.Equal(t, int64(4), principal.EdgeServerID)
	// Body must survive verification for the handler.
	assert.Equal(t, body, string(seenBody))
}

func TestAuthenticateMiddlewareRejects(t *testing.T) {
	device := &edgeauth.Device{ID: 4, OrganizationID: 11, EdgeKey: "edge_mw", EdgeSecret: "s3cret"}
	verifier := edgeauth.NewVerifier(mapStore{device.EdgeKey: device}, nil)
	mw := edgeauth.Middleware{Verifier: verifier}
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/edges/cameras", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, edgeauth.CodeAuthenticationRequired, payload["error"])
}

func TestAuthenticateMiddlewareBadSignature(t *testing.T) {
	device := &edgeauth.Device{ID: 4, OrganizationID: 11, EdgeKey: "edge_mw", EdgeSecret: "s3cret"}
	verifier := edgeauth.NewVerifier(mapStore{device.EdgeKey: device}, nil)
	mw := edgeauth.Middleware{Verifier: verifier}
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/edges/cameras", nil)
	signHeaders(req, device, time.Now(), "")
	req.Header.Set(edgeauth.HeaderEdgeSignature, strings.Repeat("0", 64))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, edgeauth.CodeInvalidSignature, payload["error"])
}
