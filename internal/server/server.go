package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"renovationAi/internal/studio"
)

// modelSteps is the longest chain of model calls behind one request:
// edit, annotate, extract materials.
const modelSteps = 3

// Config holds the listener settings.
type Config struct {
	Port string
	// RequestTimeout bounds each model call of a generate or refine round trip.
	RequestTimeout time.Duration
}

// New constructs the HTTP server with routes and middleware.
func New(cfg Config, studioHandler studio.Handler, staticFS http.Handler) *http.Server {
	router := NewRouter(studioHandler, staticFS)

	writeTimeout := modelSteps*cfg.RequestTimeout + 30*time.Second
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("server ready", "addr", srv.Addr, "write_timeout", writeTimeout)
	return srv
}

// NewRouter wires middleware, the studio API and the static frontend.
func NewRouter(studioHandler studio.Handler, staticFS http.Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", studioHandler.Mount)

	if staticFS != nil {
		router.Handle("/*", staticFS)
	}
	return router
}
