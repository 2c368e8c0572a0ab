package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Middleware resolves the session user into a request principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Identity loads the session's user and stores a principal in context.
// Requests without a valid session continue anonymously; downstream
// authorization middleware decides whether that is acceptable.
func (m Middleware) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Service.ResolvePrincipal(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("session user not resolvable", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := authz.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
