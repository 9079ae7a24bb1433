// Package api exposes the point store and the map synchronizer over HTTP.
// Every request is one UI update cycle: work the synchronizer defers while
// the handler runs is flushed before the request returns.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/poi-cli/internal/editor"
	"github.com/sells-group/poi-cli/internal/export"
	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/points"
)

// Options tune the router.
type Options struct {
	RateLimit    float64
	RateBurst    int
	CORSOrigins  []string
	MaxBodyBytes int64
	ExportBase   string
}

// Server holds the components the handlers operate on.
type Server struct {
	points *points.Store
	sync   *mapsync.Synchronizer
	editor *editor.Session
	loop   *mapsync.Loop
	opts   Options
}

// New creates a server. loop may be nil when the synchronizer runs deferred
// work immediately.
func New(ps *points.Store, ms *mapsync.Synchronizer, loop *mapsync.Loop, opts Options) *Server {
	if opts.ExportBase == "" {
		opts.ExportBase = export.DefaultBase
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	return &Server{
		points: ps,
		sync:   ms,
		editor: editor.New(ps, ms),
		loop:   loop,
		opts:   opts,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	if s.opts.RateLimit > 0 {
		r.Use(rateLimit(s.opts.RateLimit, s.opts.RateBurst))
	}
	r.Use(s.flushCycle)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/features", func(r chi.Router) {
			r.Get("/", s.handleListFeatures)
			r.Post("/", s.handleAddFeature)
			r.Delete("/", s.handleClear)
			r.Get("/{id}", s.handleGetFeature)
			r.Patch("/{id}", s.handleUpdateFeature)
			r.Delete("/{id}", s.handleRemoveFeature)
		})
		r.Get("/categories", s.handleCategories)

		r.Get("/filter", s.handleGetFilter)
		r.Put("/filter", s.handleSetFilter)
		r.Delete("/filter", s.handleClearFilter)

		r.Post("/import", s.handleImport)
		r.Get("/export", s.handleExport)

		r.Route("/map", func(r chi.Router) {
			r.Get("/", s.handleMapState)
			r.Get("/source", s.handleMapSource)
			r.Post("/click", s.handleMapClick)
			r.Post("/hover", s.handleMapHover)
			r.Get("/selection", s.handleGetSelection)
			r.Put("/selection", s.handleSubmitSelection)
			r.Delete("/selection", s.handleClearSelection)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
