package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clubward/clubward/internal/billing"
	"github.com/clubward/clubward/internal/members"
	"github.com/clubward/clubward/internal/observability"
	"github.com/clubward/clubward/internal/runlog"
	"github.com/clubward/clubward/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config         *Config
	Metrics        *observability.Metrics
	BillingHandler *billing.Handler
	MembersHandler *members.Handler
	RunsHandler    *runlog.Handler
	JobsHandler    *jobs.Handler
}

// NewRouter constructs the chi.Router with Clubward defaults.
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

	r.Route("/api", func(r chi.Router) {
		if params.MembersHandler != nil {
			r.Route("/members", params.MembersHandler.MountRoutes)
		}
		if params.BillingHandler != nil {
			params.BillingHandler.MountRoutes(r)
		}
		if params.RunsHandler != nil {
			r.Route("/runs", params.RunsHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
