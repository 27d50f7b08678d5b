package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/ratelimit"
	"github.com/vidfetch/vidfetch/internal/transport/http/middleware"
)

// NewRouter creates a chi router with all routes and middleware
// configured. Health and history stay outside the rate limiter, the
// expensive endpoints go through it.
func NewRouter(cfg *config.Config, handlers *Handlers, limiter *ratelimit.Limiter, downloadsDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/health", handlers.HealthHandler)
	r.Get("/api/history", handlers.HistoryHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Post("/api/download", handlers.DownloadHandler)
		r.Post("/api/extract", handlers.ExtractHandler)
	})

	// Locally-stored artifacts are served straight from the downloads
	// directory.
	fileServer := http.StripPrefix("/downloads/", http.FileServer(http.Dir(downloadsDir)))
	r.Get("/downloads/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// NewServer creates the HTTP server. The write timeout is generous:
// a download request holds the connection for the whole pipeline run.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
}
