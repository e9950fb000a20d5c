// Command api is the Direct Dispatch server: it exposes the live-event
// trigger, indexes newly created events and runs the optional cron jobs.
//
// Usage:
//
//	direct-dispatch-api
//	API_PORT=8080 DISPATCH_CRON="*/5 * * * *" direct-dispatch-api

// @title Direct Dispatch API
// @version 1.0.0
// @description Announces live events to nearby users whose interests match, one batched push per event.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Direct Dispatch
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/direct-dispatch/internal/api"
	"github.com/albapepper/direct-dispatch/internal/app"
	"github.com/albapepper/direct-dispatch/internal/config"
	"github.com/albapepper/direct-dispatch/internal/listener"
	"github.com/albapepper/direct-dispatch/internal/maintenance"

	_ "github.com/albapepper/direct-dispatch/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialise backends", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Index events as they are created (Postgres change feed only; Firebase
	// deployments index through the CLI or the schedule endpoint).
	if cfg.StoreBackend == config.BackendPostgres {
		go listener.New(cfg.DatabaseURL, a.Events, a.Schedule, logger).Start(ctx)
	}

	// Cron jobs (dispatch without an external trigger, stale partition pruning)
	go func() {
		mcfg := maintenance.Config{
			DispatchCron:  cfg.DispatchCron,
			PruneCron:     cfg.PruneCron,
			RetentionDays: cfg.ScheduleRetentionDays,
		}
		if err := maintenance.Start(ctx, mcfg, a.Dispatcher, a.Schedule, logger); err != nil {
			logger.Error("Maintenance cron failed to start", "error", err)
			cancel()
		}
	}()

	router := api.NewRouter(a.HandlerDeps(), cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting Direct Dispatch API",
			"addr", addr,
			"environment", cfg.Environment,
			"store", cfg.StoreBackend,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
