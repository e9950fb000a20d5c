// Package app wires the configured backends into a dispatcher. Shared by
// cmd/api and cmd/dispatchctl.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/albapepper/direct-dispatch/internal/api/handler"
	"github.com/albapepper/direct-dispatch/internal/audit"
	"github.com/albapepper/direct-dispatch/internal/cache"
	"github.com/albapepper/direct-dispatch/internal/config"
	"github.com/albapepper/direct-dispatch/internal/db"
	"github.com/albapepper/direct-dispatch/internal/dispatch"
	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/geo"
	"github.com/albapepper/direct-dispatch/internal/notifications"
	"github.com/albapepper/direct-dispatch/internal/push"
	"github.com/albapepper/direct-dispatch/internal/schedule"
	"github.com/albapepper/direct-dispatch/internal/users"
)

// App holds every long-lived dependency of the service.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool       *db.Pool // nil unless STORE_BACKEND=postgres
	Docs       docstore.Store
	Geo        *geo.Redis
	Cache      *cache.Cache
	Events     *event.Repository
	Schedule   *schedule.Index
	Users      *users.Directory
	Push       push.Gateway
	Audit      audit.Publisher
	Dispatcher *dispatch.Dispatcher

	redis *redis.Client
}

// Build connects to the configured backends. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	var fb *firebase.App
	if cfg.StoreBackend == config.BackendFirebase || cfg.PushEnabled() {
		var err error
		fb, err = newFirebaseApp(ctx, cfg)
		if err != nil {
			return err
		}
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		logger.Info("Connecting to database...")
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.Pool = pool
		a.Docs = docstore.NewPostgres(pool.Pool)
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
	case config.BackendFirebase:
		client, err := fb.Database(ctx)
		if err != nil {
			return fmt.Errorf("firebase database: %w", err)
		}
		a.Docs = docstore.NewFirebase(client)
		logger.Info("Firebase realtime database connected", "url", cfg.FirebaseDatabaseURL)
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	rdb, err := geo.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to geo index: %w", err)
	}
	a.redis = rdb
	a.Geo = geo.NewRedis(rdb, cfg.GeoIndexKey)
	logger.Info("Geo index connected", "key", cfg.GeoIndexKey)

	a.Cache = cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	if fb != nil && cfg.PushEnabled() {
		client, err := fb.Messaging(ctx)
		if err != nil {
			return fmt.Errorf("firebase messaging: %w", err)
		}
		a.Push = push.NewFCM(client, logger)
		logger.Info("Push gateway: FCM")
	} else {
		a.Push = push.NewLogSender(logger)
		logger.Info("Push gateway disabled (no FIREBASE_CREDENTIALS_FILE)")
	}

	if len(cfg.AuditKafkaBrokers) > 0 {
		a.Audit = audit.NewKafka(cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic, logger)
		logger.Info("Audit stream enabled", "brokers", cfg.AuditKafkaBrokers, "topic", cfg.AuditKafkaTopic)
	} else {
		a.Audit = audit.Nop{}
	}

	a.Events = event.NewRepository(a.Docs)
	a.Schedule = schedule.NewIndex(a.Docs)
	a.Users = users.NewDirectory(a.Docs, a.Cache, cfg.PreferenceCacheTTL, logger)
	a.Dispatcher = a.NewDispatcher(nil)
	return nil
}

// NewDispatcher builds a dispatcher over the app's backends. now overrides
// the clock when non-nil.
func (a *App) NewDispatcher(now func() time.Time) *dispatch.Dispatcher {
	cfg := a.Config
	return dispatch.New(
		a.Schedule,
		a.Events,
		notifications.NewAudienceResolver(a.Geo, a.Users, cfg.SearchRadiusKm, cfg.PreferenceConcurrency),
		notifications.NewDeliverer(a.Users, a.Push, a.Schedule, cfg.PreferenceConcurrency),
		a.Audit,
		dispatch.Options{
			Workers:      cfg.DispatchWorkers,
			EventTimeout: cfg.EventTimeout,
			RunTimeout:   cfg.RunTimeout,
			Now:          now,
		},
		a.Logger,
	)
}

func newFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	fb, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.FirebaseDatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	return fb, nil
}

// HandlerDeps exposes the app to the HTTP handlers.
func (a *App) HandlerDeps() handler.Deps {
	d := handler.Deps{
		Runner:   a.Dispatcher,
		Schedule: a.Schedule,
		Events:   a.Events,
		Geo:      a.Geo,
		Cache:    a.Cache,
		Logger:   a.Logger,
	}
	if p, ok := a.Docs.(docstore.Pinger); ok {
		d.Store = p
	}
	return d
}

// Close releases every connection opened by Build.
func (a *App) Close() {
	if a.Audit != nil {
		if err := a.Audit.Close(); err != nil {
			a.Logger.Warn("Failed to close audit stream", "error", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
