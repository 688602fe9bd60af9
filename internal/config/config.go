package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	Store        StoreConfig
	Cache        CacheConfig
	Dedup        DedupConfig
	Orchestrator OrchestratorConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// StoreConfig selects the persistence backend and job lifetimes.
type StoreConfig struct {
	// DatabaseURL enables the Postgres backend when set; otherwise the
	// in-memory backend is used.
	DatabaseURL  string
	JobTTL       time.Duration
	ActiveJobTTL time.Duration
	CleanupEvery time.Duration
	MaxJobAge    time.Duration
}

// CacheConfig bounds the day-bucket cache's adaptive TTL.
type CacheConfig struct {
	FloorTTL   time.Duration
	CeilingTTL time.Duration
	DefaultTTL time.Duration
}

// DedupConfig carries the duplicate-decision heuristics.
type DedupConfig struct {
	TimeWindow     time.Duration
	TitleThreshold float64
}

// OrchestratorConfig holds fetch-cycle parameters.
type OrchestratorConfig struct {
	BatchSize       int
	BatchPause      time.Duration
	CategoryTimeout time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultJobTTL       = 24 * time.Hour
	defaultActiveJobTTL = 10 * time.Minute
	defaultCleanupEvery = 30 * time.Minute
	defaultMaxJobAge    = 24 * time.Hour

	defaultCacheFloor   = 60 * time.Second
	defaultCacheCeiling = 24 * time.Hour
	defaultCacheFallback = 5 * time.Minute

	defaultDedupWindow    = 1 * time.Hour
	defaultDedupThreshold = 0.85

	defaultBatchSize       = 3
	defaultBatchPause      = 2 * time.Second
	defaultCategoryTimeout = 90 * time.Second
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided or invalid.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Store: StoreConfig{
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			JobTTL:       defaultJobTTL,
			ActiveJobTTL: defaultActiveJobTTL,
			CleanupEvery: defaultCleanupEvery,
			MaxJobAge:    defaultMaxJobAge,
		},
		Cache: CacheConfig{
			FloorTTL:   defaultCacheFloor,
			CeilingTTL: defaultCacheCeiling,
			DefaultTTL: defaultCacheFallback,
		},
		Dedup: DedupConfig{
			TimeWindow:     defaultDedupWindow,
			TitleThreshold: defaultDedupThreshold,
		},
		Orchestrator: OrchestratorConfig{
			BatchSize:       defaultBatchSize,
			BatchPause:      defaultBatchPause,
			CategoryTimeout: defaultCategoryTimeout,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("ACTIVE_JOB_TTL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIVE_JOB_TTL_SECONDS: %w", err)
		}
		cfg.Store.ActiveJobTTL = d
	}

	if v := os.Getenv("JOB_TTL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JOB_TTL_SECONDS: %w", err)
		}
		cfg.Store.JobTTL = d
		cfg.Store.MaxJobAge = d
	}

	if v := os.Getenv("CACHE_CEILING_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CACHE_CEILING_SECONDS: %w", err)
		}
		if d > 7*24*time.Hour {
			return Config{}, fmt.Errorf("invalid CACHE_CEILING_SECONDS: must not exceed 7 days")
		}
		cfg.Cache.CeilingTTL = d
	}

	if v := os.Getenv("DEDUP_TITLE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return Config{}, fmt.Errorf("invalid DEDUP_TITLE_THRESHOLD: must be a float in (0, 1)")
		}
		cfg.Dedup.TitleThreshold = f
	}

	if v := os.Getenv("DEDUP_TIME_WINDOW_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEDUP_TIME_WINDOW_SECONDS: %w", err)
		}
		cfg.Dedup.TimeWindow = d
	}

	if v := os.Getenv("CATEGORY_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CATEGORY_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Orchestrator.CategoryTimeout = d
	}

	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid BATCH_SIZE: must be a positive integer")
		}
		cfg.Orchestrator.BatchSize = n
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
