package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quartermaster-erp/quartermaster/internal/audit"
	"github.com/quartermaster-erp/quartermaster/internal/auth"
	"github.com/quartermaster-erp/quartermaster/internal/observability"
	"github.com/quartermaster-erp/quartermaster/internal/rbac"
	"github.com/quartermaster-erp/quartermaster/internal/roles"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
	"github.com/quartermaster-erp/quartermaster/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Orchestrator   *auth.Orchestrator
	AuthHandler    *auth.Handler
	RolesHandler   *roles.Handler
	AuditHandler   *audit.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with project defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(LoginRateLimiter())
			params.AuthHandler.MountRoutes(r)
		})

		// Everything below requires an authenticated principal; the
		// per-route permission guards re-derive the role from the store.
		r.Group(func(r chi.Router) {
			r.Use(params.Orchestrator.RequireAuth)

			r.Group(func(r chi.Router) {
				r.Use(params.Orchestrator.RequirePermission(rbac.ActionManageUsers, "role"))
				params.RolesHandler.MountRoutes(r)
			})

			r.Route("/audit", func(r chi.Router) {
				params.AuditHandler.MountRoutes(r,
					params.Orchestrator.RequirePermission(rbac.ActionRead, "audit"),
					params.Orchestrator.RequirePermission(rbac.ActionExport, "audit"))
			})
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
