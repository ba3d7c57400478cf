package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"healthsync/application/services"
	"healthsync/infrastructure/config"
	"healthsync/interfaces/http/rest/handlers"
	"healthsync/interfaces/http/rest/middleware"
	"healthsync/pkg/ratelimit"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg    *config.Config
	engine *services.Engine
	buffer *services.Buffer
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	engine *services.Engine,
	buffer *services.Buffer,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:    cfg,
		engine: engine,
		buffer: buffer,
		logger: logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	// API v1 routes
	limiter := ratelimit.NewTokenBucketLimiter(120, 500*time.Millisecond)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.Middleware)
		syncHandler := handlers.NewSyncHandler(rt.engine, rt.logger)
		r.Get("/sync/status", syncHandler.Status)
		r.Post("/sync/drain", syncHandler.Drain)
		r.Post("/sync/download", syncHandler.Download)
		r.Post("/collect", syncHandler.Collect)
		r.Post("/cleanup", syncHandler.Cleanup)

		dataHandler := handlers.NewDataHandler(rt.buffer, rt.logger)
		r.Get("/points", dataHandler.Points)
		r.Get("/footprint", dataHandler.Footprint)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports whether the local store answers
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if _, err := rt.buffer.Footprint(req.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
