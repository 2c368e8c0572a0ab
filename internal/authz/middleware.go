package authz

import (
	"log/slog"
	"net/http"

	"github.com/argus-vms/argus-cloud/internal/roles"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Middleware wires role and tenant checks for HTTP handlers. The
// principal is resolved by an upstream identity middleware; these
// closures only gate on it.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuthenticated rejects requests without a resolved principal.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			shared.RespondError(w, http.StatusUnauthorized, string(ReasonUnauthenticated), "Unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin allows only platform operators through.
func (m Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			shared.RespondError(w, http.StatusUnauthorized, string(ReasonUnauthenticated), "Unauthenticated")
			return
		}
		if !p.SuperAdmin() {
			m.warn(r, "super admin access required")
			shared.RespondError(w, http.StatusForbidden, string(ReasonRole), "Super admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the caller holds at least one of the given roles.
// Super-admins always pass.
func (m Middleware) RequireRole(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				shared.RespondError(w, http.StatusUnauthorized, string(ReasonUnauthenticated), "Unauthenticated")
				return
			}
			if p.SuperAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			user, ok := p.(UserPrincipal)
			if !ok {
				shared.RespondError(w, http.StatusForbidden, string(ReasonRole), "Insufficient permissions")
				return
			}
			for _, role := range required {
				if roles.AtLeast(user.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.warn(r, "insufficient role")
			shared.RespondError(w, http.StatusForbidden, string(ReasonRole), "Insufficient permissions")
		})
	}
}

// RequireOrgMember ensures non-super-admin callers belong to an
// organization.
func (m Middleware) RequireOrgMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			shared.RespondError(w, http.StatusUnauthorized, string(ReasonUnauthenticated), "Unauthenticated")
			return
		}
		if p.SuperAdmin() {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := p.Tenant(); !ok {
			shared.RespondError(w, http.StatusForbidden, string(ReasonCrossTenant), "User must belong to an organization")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOrgManager ensures the caller can manage organization
// resources (admin or above, or super-admin).
func (m Middleware) RequireOrgManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			shared.RespondError(w, http.StatusUnauthorized, string(ReasonUnauthenticated), "Unauthenticated")
			return
		}
		if p.SuperAdmin() {
			next.ServeHTTP(w, r)
			return
		}
		user, ok := p.(UserPrincipal)
		if !ok || !roles.CanManageOrganization(user.Role) {
			m.warn(r, "organization management access required")
			shared.RespondError(w, http.StatusForbidden, string(ReasonRole), "Organization management access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) warn(r *http.Request, msg string) {
	if m.Logger != nil {
		m.Logger.Warn(msg, slog.String("path", r.URL.Path))
	}
}

// RespondDecision maps a deny decision onto the HTTP error surface.
func RespondDecision(w http.ResponseWriter, d Decision) {
	if d.Allowed {
		return
	}
	if d.Reason == ReasonUnauthenticated {
		shared.RespondError(w, http.StatusUnauthorized, string(d.Reason), "Unauthenticated")
		return
	}
	shared.RespondError(w, http.StatusForbidden, string(d.Reason), "Forbidden")
}
