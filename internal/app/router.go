package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/argus-vms/argus-cloud/internal/auth"
	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/cameras"
	"github.com/argus-vms/argus-cloud/internal/edgeauth"
	"github.com/argus-vms/argus-cloud/internal/edges"
	"github.com/argus-vms/argus-cloud/internal/license"
	"github.com/argus-vms/argus-cloud/internal/observability"
	"github.com/argus-vms/argus-cloud/internal/organizations"
	"github.com/argus-vms/argus-cloud/internal/roles"
	"github.com/argus-vms/argus-cloud/internal/shared"
	"github.com/argus-vms/argus-cloud/internal/users"
	"github.com/argus-vms/argus-cloud/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler          *auth.Handler
	AuthMiddleware       auth.Middleware
	AuthzMiddleware      authz.Middleware
	LicenseHandler       *license.Handler
	LicenseMiddleware    license.Middleware
	UsersHandler         *users.Handler
	OrganizationsHandler *organizations.Handler
	RolesHandler         *roles.Handler
	CamerasHandler       *cameras.Handler
	EdgesHandler         *edges.Handler
	EdgeAuthMiddleware   edgeauth.Middleware
	JobsHandler          *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Argus defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.AuthMiddleware.Identity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Management API for browser and panel clients.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthzMiddleware.RequireAuthenticated)

		r.Route("/organizations", params.OrganizationsHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/licenses", params.LicenseHandler.MountRoutes)

		// Camera and edge management require a live subscription.
		r.Group(func(r chi.Router) {
			r.Use(params.LicenseMiddleware.RequireActiveSubscription)
			r.Route("/cameras", params.CamerasHandler.MountRoutes)
			r.Route("/edges", params.EdgesHandler.MountRoutes)
		})
	})

	// Device API for the appliances, authenticated with signed requests.
	r.Route("/api/edge", func(r chi.Router) {
		r.Use(params.EdgeAuthMiddleware.Authenticate)
		r.Use(params.LicenseMiddleware.RequireActiveSubscription)

		params.EdgesHandler.MountDeviceRoutes(r)
		r.Route("/cameras", params.CamerasHandler.MountRoutes)
	})

	if params.JobsHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireSuperAdmin)
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
