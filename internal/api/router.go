package api

import (
	"net/http"
	"time"

	"github.com/eventradar/eventradar/internal/auth"
	"github.com/eventradar/eventradar/internal/cityconfig"
	"github.com/eventradar/eventradar/internal/daycache"
	"github.com/eventradar/eventradar/internal/jobstore"
	"github.com/eventradar/eventradar/internal/metrics"
	"github.com/eventradar/eventradar/internal/orchestrator"
	"github.com/eventradar/eventradar/internal/storage"
	"log/slog"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	mux *http.ServeMux,
	orch *orchestrator.Orchestrator,
	jobs *jobstore.JobStore,
	cache *daycache.Cache,
	cities cityconfig.Provider,
	backend storage.Backend,
	collector *metrics.Collector,
	authConfig auth.Config,
	maxJobAge time.Duration,
	logger *slog.Logger,
) {
	handler := NewHandler(orch, jobs, cache, cities, collector, logger)
	authHandler := NewAuthHandler(authConfig, logger)
	adminHandler := NewAdminHandler(jobs, backend, maxJobAge, logger)

	authMiddleware := auth.Middleware(authConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Search and job routes (public)
	mux.HandleFunc("/api/search", handler.SearchHandler)
	mux.HandleFunc("/api/jobs/", handler.GetJobHandler)
	mux.HandleFunc("/api/events", handler.GetEventsHandler)

	// Admin routes (require auth)
	mux.HandleFunc("/api/admin/cleanup", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(adminHandler.Cleanup)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(adminHandler.Stats)).ServeHTTP(w, r)
	})

	// Operational endpoints
	mux.HandleFunc("/healthz", handler.HealthHandler)
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
}
