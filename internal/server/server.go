// Package server exposes the overlay pipeline over HTTP: the current
// marker set as GeoJSON, visibility toggles, and an idempotent kick for
// the enrichment queue. One Controller owns all shared state; handlers
// never touch package globals.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/enrich"
	"github.com/cardmap/cardmap-cli/internal/markers"
	"github.com/cardmap/cardmap-cli/internal/overlay"
	"github.com/cardmap/cardmap-cli/internal/store"
)

// Deps are the collaborators behind the HTTP surface. Store may be nil;
// visibility changes then live only in memory.
type Deps struct {
	Session    *overlay.Session
	Queue      *enrich.Queue
	Reconciler *markers.Reconciler
	Store      store.Store

	// APIKey, when set, is required as a bearer token on mutating
	// endpoints. Read endpoints stay open.
	APIKey string

	// AllowedOrigins for CORS. Defaults to "*".
	AllowedOrigins []string
}

// Controller routes HTTP requests onto the session, queue and
// reconciler. Background queue runs use the context given to New, so
// cancelling it stops enrichment between entries.
type Controller struct {
	baseCtx    context.Context
	session    *overlay.Session
	queue      *enrich.Queue
	reconciler *markers.Reconciler
	store      store.Store
	apiKey     string
	origins    []string
}

// New builds a controller. ctx bounds background enrichment runs kicked
// over HTTP.
func New(ctx context.Context, deps Deps) *Controller {
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Controller{
		baseCtx:    ctx,
		session:    deps.Session,
		queue:      deps.Queue,
		reconciler: deps.Reconciler,
		store:      deps.Store,
		apiKey:     deps.APIKey,
		origins:    origins,
	}
}

// Router assembles the chi router with CORS and bearer auth on the
// mutating routes.
func (c *Controller) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", c.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", c.handleBoard)
		r.Get("/markers", c.handleMarkers)
		r.Get("/enrich/status", c.handleEnrichStatus)

		r.Group(func(r chi.Router) {
			r.Use(c.requireKey)
			r.Put("/groups/{id}/visibility", c.handleGroupVisibility)
			r.Put("/preferences", c.handlePreferences)
			r.Post("/enrich", c.handleEnrichKick)
		})
	})

	return r
}

// Resync rebuilds the marker set wholesale from the current session
// state. Both the toggle handlers and the queue's resolution hook land
// here.
func (c *Controller) Resync() {
	filter := markers.NewFilter(c.session.Groups(), c.session.Visibility())
	c.reconciler.Sync(c.session.Items(), filter)
}

// requireKey enforces bearer auth on mutating routes when a key is
// configured.
func (c *Controller) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+c.apiKey {
			errorJSON(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encoding response failed", zap.Error(err))
	}
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
