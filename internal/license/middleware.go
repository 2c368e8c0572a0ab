package license

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// accessGroup coalesces concurrent access checks for the same tenant
// so a burst of requests costs one database round trip.
var accessGroup singleflight.Group

// Middleware gates tenant traffic on a currently valid license.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireActiveSubscription rejects requests from organizations whose
// access is withheld. Super-admins bypass the gate; the grace period
// length rides along in the body so clients can explain the denial.
func (m Middleware) RequireActiveSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := authz.PrincipalFromContext(r.Context())
		if p == nil {
			shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Unauthenticated")
			return
		}
		if p.SuperAdmin() {
			next.ServeHTTP(w, r)
			return
		}
		orgID, ok := p.Tenant()
		if !ok {
			shared.RespondError(w, http.StatusForbidden, string(authz.ReasonCrossTenant), "Organization not found or not accessible")
			return
		}
		result, err, _ := accessGroup.Do(strconv.FormatInt(orgID, 10), func() (interface{}, error) {
			// The leader's result is shared with coalesced requests,
			// so the check must outlive any single client disconnect.
			return m.Service.OrganizationHasAccess(context.WithoutCancel(r.Context()), orgID)
		})
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("license access check", slog.Any("error", err), slog.Int64("organization_id", orgID))
			}
			shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
			return
		}
		if allowed, _ := result.(bool); !allowed {
			graceDays := m.Service.GracePeriodDays()
			if m.Logger != nil {
				m.Logger.Warn("subscription gate denied request",
					slog.Int64("organization_id", orgID),
					slog.String("path", r.URL.Path))
			}
			shared.RespondErrorExtra(w, http.StatusForbidden, "subscription_expired",
				fmt.Sprintf("No active subscription found. Please renew your license. Grace period: %d days after expiry.", graceDays),
				map[string]any{"grace_period_days": graceDays})
			return
		}
		next.ServeHTTP(w, r)
	})
}
