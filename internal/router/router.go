// Package router provides centralized API route registration.
// All HTTP routes are registered here, grouped by concern, with the
// appropriate middleware applied to each group.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"doctranslate/internal/auth"
	"doctranslate/internal/handler"
	"doctranslate/internal/middleware"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// StageTimeout bounds one extract, translate or export request.
	StageTimeout time.Duration
	// Limiter locks out clients that send wrong access tokens. New creates
	// one when nil.
	Limiter *auth.LoginLimiter
}

// New builds the API router.
func New(app *handler.App, opts Options) http.Handler {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8080", "http://127.0.0.1:8080"}
	}
	if opts.Limiter == nil {
		opts.Limiter = auth.NewLoginLimiter()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// ── Public ──
	r.Get("/", handler.HandleRoot())

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handler.HandleHealth())

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.TokenAuth(app.CheckAccessToken, opts.Limiter))

			// ── Documents ──
			protected.Group(func(stage chi.Router) {
				stage.Use(chimw.Timeout(opts.StageTimeout))
				stage.Post("/documents/upload", handler.HandleDocumentUpload(app))
				stage.Post("/documents/translate", handler.HandleDocumentTranslate(app))
				stage.Post("/documents/export", handler.HandleDocumentExport(app))
			})

			// ── History & system ──
			protected.Get("/history", handler.HandleHistory(app))
			protected.Get("/system/errors", handler.HandleRecentErrors())
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
