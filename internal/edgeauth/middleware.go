package edgeauth

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Middleware authenticates edge device requests and attaches the
// resulting device principal to the request context.
type Middleware struct {
	Verifier *Verifier
	Logger   *slog.Logger
}

// Authenticate verifies the HMAC headers on every request before it
// reaches domain handlers.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
			return
		}
		_ = r.Body.Close()
		// Handlers downstream still need the body.
		r.Body = io.NopCloser(bytes.NewReader(body))

		principal, verr := m.Verifier.Verify(r.Context(), Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Key:       r.Header.Get(HeaderEdgeKey),
			Timestamp: r.Header.Get(HeaderEdgeTimestamp),
			Signature: r.Header.Get(HeaderEdgeSignature),
			Body:      body,
		})
		if verr != nil {
			shared.RespondError(w, verr.Status, verr.Code, verr.Message)
			return
		}

		if m.Logger != nil {
			m.Logger.Debug("edge device authenticated",
				slog.String("edge_key", principal.EdgeKey),
				slog.Int64("edge_server_id", principal.EdgeServerID),
				slog.Int64("organization_id", principal.OrganizationID))
		}

		ctx := authz.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
