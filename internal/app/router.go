package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/sentra-authz/sentra/internal/catalog"
	"github.com/sentra-authz/sentra/internal/matrix"
	"github.com/sentra-authz/sentra/internal/observability"
	"github.com/sentra-authz/sentra/internal/override"
	"github.com/sentra-authz/sentra/internal/resolver"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	CatalogHandler  *catalog.Handler
	MatrixHandler   *matrix.Handler
	OverrideHandler *override.Handler
	ResolverHandler *resolver.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with engine defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	checkLimit := 200
	if params.Config != nil && params.Config.CheckRateLimit > 0 {
		checkLimit = params.Config.CheckRateLimit
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/permissions", params.CatalogHandler.MountRoutes)
		r.Route("/roles", params.MatrixHandler.MountRoutes)
		r.Route("/overrides", params.OverrideHandler.MountOverrideRoutes)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Route("/permissions", params.OverrideHandler.MountUserRoutes)
			r.Route("/effective-permissions", params.ResolverHandler.MountUserRoutes)
		})
		r.Route("/authz", func(r chi.Router) {
			r.Use(httprate.LimitByIP(checkLimit, time.Minute))
			params.ResolverHandler.MountCheckRoutes(r)
		})
	})

	return r
}
