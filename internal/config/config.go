// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/dispatchctl.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store backends
// --------------------------------------------------------------------------

const (
	BackendPostgres = "postgres"
	BackendFirebase = "firebase"
)

// --------------------------------------------------------------------------
// Config is populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Document store
	StoreBackend   string
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Firebase (realtime database backend + FCM)
	FirebaseCredentialsFile string
	FirebaseDatabaseURL     string

	// Geospatial index
	RedisURL       string
	GeoIndexKey    string
	SearchRadiusKm float64

	// Dispatcher
	DispatchWorkers       int
	PreferenceConcurrency int
	EventTimeout          time.Duration
	RunTimeout            time.Duration
	DispatchToken         string

	// In-process schedules (cron specs, empty disables)
	DispatchCron          string
	PruneCron             string
	ScheduleRetentionDays int

	// Audit stream
	AuditKafkaBrokers []string
	AuditKafkaTopic   string

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled       bool
	PreferenceCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		StoreBackend:   strings.ToLower(envOr("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		FirebaseCredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseDatabaseURL:     envOr("FIREBASE_DATABASE_URL", ""),

		RedisURL:       envOr("REDIS_URL", "redis://localhost:6379/0"),
		GeoIndexKey:    envOr("GEO_INDEX_KEY", "user_loc"),
		SearchRadiusKm: envFloat("SEARCH_RADIUS_KM", 10000),

		DispatchWorkers:       envInt("DISPATCH_WORKERS", 4),
		PreferenceConcurrency: envInt("PREFERENCE_LOOKUP_CONCURRENCY", 16),
		EventTimeout:          envDuration("EVENT_TIMEOUT", 30*time.Second),
		RunTimeout:            envDuration("RUN_TIMEOUT", 5*time.Minute),
		DispatchToken:         envOr("DISPATCH_TOKEN", ""),

		DispatchCron:          envOr("DISPATCH_CRON", ""),
		PruneCron:             envOr("PRUNE_CRON", "@daily"),
		ScheduleRetentionDays: envInt("SCHEDULE_RETENTION_DAYS", 7),

		AuditKafkaBrokers: envList("AUDIT_KAFKA_BROKERS", nil),
		AuditKafkaTopic:   envOr("AUDIT_KAFKA_TOPIC", "live-event-deliveries"),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled:       envBool("CACHE_ENABLED", true),
		PreferenceCacheTTL: envDuration("PREFERENCE_CACHE_TTL", time.Minute),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when STORE_BACKEND=%s", BackendPostgres)
		}
	case BackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL must be set when STORE_BACKEND=%s", BackendFirebase)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.SearchRadiusKm <= 0 {
		return fmt.Errorf("SEARCH_RADIUS_KM must be positive, got %v", c.SearchRadiusKm)
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// PushEnabled reports whether FCM credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.FirebaseCredentialsFile != ""
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
