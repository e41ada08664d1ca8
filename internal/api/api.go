// Package api wires the MultiQueue core, the restriction registry, and
// the access-control filter into the REST surface: an API struct holding
// its collaborators plus a Router() method that maps HTTP routes to
// handlers without carrying any business rules itself.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/queuehub/queuehub/internal/auth"
	"github.com/queuehub/queuehub/internal/config"
	"github.com/queuehub/queuehub/internal/queue"
	"github.com/queuehub/queuehub/internal/restriction"
)

// API holds every collaborator a handler may need.
type API struct {
	Core         *queue.Core
	Restrictions *restriction.Registry
	Tokens       *auth.TokenProvider
	Access       *auth.Middleware
	Metrics      http.Handler
	Cfg          *config.Config
	Log          *slog.Logger
}

// New constructs an API.
func New(core *queue.Core, restrictions *restriction.Registry, tokens *auth.TokenProvider, access *auth.Middleware, metricsHandler http.Handler, cfg *config.Config, log *slog.Logger) *API {
	return &API{
		Core:         core,
		Restrictions: restrictions,
		Tokens:       tokens,
		Access:       access,
		Metrics:      metricsHandler,
		Cfg:          cfg,
		Log:          log,
	}
}

// Router builds the chi mux for the full REST surface.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(a.logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(a.Access.Authenticate)

	r.Get("/health", a.Health)
	r.Get("/settings", a.Settings)
	r.Handle("/metrics", a.Metrics)

	r.Post("/message", a.CreateMessage)
	r.Get("/message/{uuid}", a.GetMessage)
	r.Delete("/message/{uuid}", a.DeleteMessage)
	r.Put("/message/{uuid}", a.UpdateMessage)

	r.Get("/queue/{subQueue}", a.ListQueue)
	r.Get("/queue/{subQueue}/next", a.PollQueue)
	r.Get("/queue/{subQueue}/peek", a.PeekQueue)
	r.Delete("/queue/{subQueue}", a.ClearQueue)
	r.Post("/queue/{subQueue}/assign", a.AssignMessage)
	r.Post("/queue/{subQueue}/release", a.ReleaseMessage)

	r.Get("/keys", a.ListKeys)
	r.Get("/owners", a.OwnersMap)

	r.Group(func(r chi.Router) {
		r.Use(a.Access.RequireAdmin)
		r.Post("/auth/{subQueue}", a.IssueToken)
		r.Put("/restriction/{subQueue}", a.AddRestriction)
		r.Delete("/restriction/{subQueue}", a.RemoveRestriction)
	})
	r.Get("/restriction", a.ListRestrictions)

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.Log.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
