package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eventradar/eventradar/internal/api"
	"github.com/eventradar/eventradar/internal/auth"
	"github.com/eventradar/eventradar/internal/cityconfig"
	"github.com/eventradar/eventradar/internal/config"
	"github.com/eventradar/eventradar/internal/daycache"
	"github.com/eventradar/eventradar/internal/dedup"
	"github.com/eventradar/eventradar/internal/jobstore"
	"github.com/eventradar/eventradar/internal/logging"
	"github.com/eventradar/eventradar/internal/metrics"
	"github.com/eventradar/eventradar/internal/orchestrator"
	"github.com/eventradar/eventradar/internal/provider"
	"github.com/eventradar/eventradar/internal/server"
	"github.com/eventradar/eventradar/internal/storage"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting eventradar")

	backend, closeBackend, err := buildBackend(cfg.Store, logger)
	if err != nil {
		logger.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	jobs := jobstore.New(backend, jobstore.Config{
		JobTTL:       cfg.Store.JobTTL,
		ActiveJobTTL: cfg.Store.ActiveJobTTL,
	}, logger)

	dedupCfg := dedup.Config{
		TimeWindow:     cfg.Dedup.TimeWindow,
		TitleThreshold: cfg.Dedup.TitleThreshold,
	}

	cache := daycache.New(backend, daycache.Config{
		FloorTTL:   cfg.Cache.FloorTTL,
		CeilingTTL: cfg.Cache.CeilingTTL,
		DefaultTTL: cfg.Cache.DefaultTTL,
	}, dedupCfg, logger)

	cities := cityconfig.NewStaticProvider()
	loadFeedHints(cities, logger)

	adapter := buildAdapter(cities, logger)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics collector", "error", err)
		os.Exit(1)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.BatchSize = cfg.Orchestrator.BatchSize
	orchCfg.BatchPause = cfg.Orchestrator.BatchPause
	orchCfg.CategoryTimeout = cfg.Orchestrator.CategoryTimeout
	orch := orchestrator.New(jobs, cache, adapter, dedupCfg, collector, logger, orchCfg)

	authConfig := auth.LoadConfigFromEnv()

	mux := http.NewServeMux()
	api.SetupRoutes(mux, orch, jobs, cache, cities, backend, collector, authConfig, cfg.Store.MaxJobAge, logger)

	// Background maintenance: expired jobs and, on Postgres, expired rows.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go runCleanupLoop(cleanupCtx, jobs, backend, cfg.Store, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// buildBackend selects Postgres when DATABASE_URL is configured and falls
// back to the in-memory store otherwise.
func buildBackend(cfg config.StoreConfig, logger *slog.Logger) (storage.Backend, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory storage backend")
		return storage.NewMemoryBackend(), func() {}, nil
	}

	logger.Info("connecting to database")
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	backend, err := storage.NewPostgresBackend(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("database connected")
	return backend, func() { db.Close() }, nil
}

// buildAdapter assembles the provider chain. The AI provider is optional;
// without an API key the service still serves feed-backed lookups.
func buildAdapter(cities cityconfig.Provider, logger *slog.Logger) provider.Adapter {
	feed := provider.NewFeedAdapter(cities, logger)

	openaiCfg := provider.OpenAIConfigFromEnv()
	ai, err := provider.NewOpenAIAdapter(openaiCfg, logger)
	if err != nil {
		logger.Warn("AI provider disabled", "error", err)
		return feed
	}

	return provider.NewMulti(ai, feed)
}

// loadFeedHints registers extra feed URLs from FEED_HINTS, formatted as
// semicolon-separated "city|category|url" triples (category may be empty
// for a city-wide feed).
func loadFeedHints(cities *cityconfig.StaticProvider, logger *slog.Logger) {
	raw := os.Getenv("FEED_HINTS")
	if raw == "" {
		return
	}

	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			logger.Warn("skipping malformed feed hint", "entry", entry)
			continue
		}
		cities.AddFeedHint(parts[0], parts[1], parts[2])
	}
}

func runCleanupLoop(ctx context.Context, jobs *jobstore.JobStore, backend storage.Backend, cfg config.StoreConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.CleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := jobs.CleanupOldJobs(ctx, cfg.MaxJobAge)
			if err != nil {
				logger.Warn("periodic job cleanup failed", "error", err)
			} else if removed > 0 {
				logger.Info("cleaned up old jobs", "removed", removed)
			}

			if purger, ok := backend.(api.Purger); ok {
				if purged, err := purger.Purge(ctx); err != nil {
					logger.Warn("expired-row purge failed", "error", err)
				} else if purged > 0 {
					logger.Info("purged expired rows", "removed", purged)
				}
			}
		}
	}
}
