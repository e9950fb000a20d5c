// Package maintenance runs periodic background tasks on cron schedules:
// the live-event dispatch for deployments without an external trigger, and
// pruning of stale schedule partitions.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/albapepper/direct-dispatch/internal/dispatch"
)

const taskTimeout = 10 * time.Minute

// Config holds cron specs. An empty spec disables a task.
type Config struct {
	DispatchCron  string
	PruneCron     string
	RetentionDays int
}

// Runner starts a dispatch run.
type Runner interface {
	Run(ctx context.Context) (*dispatch.RunResult, error)
}

// Pruner removes schedule partitions older than cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Start registers the configured tasks and runs them until ctx is cancelled.
// An invalid cron spec is returned immediately. Intended to be called with `go`.
func Start(ctx context.Context, cfg Config, runner Runner, pruner Pruner, logger *slog.Logger) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)

	if cfg.DispatchCron != "" {
		_, err := c.AddFunc(cfg.DispatchCron, func() { runDispatch(ctx, runner, logger) })
		if err != nil {
			return fmt.Errorf("dispatch cron %q: %w", cfg.DispatchCron, err)
		}
	}
	if cfg.PruneCron != "" && cfg.RetentionDays > 0 {
		_, err := c.AddFunc(cfg.PruneCron, func() {
			tctx, cancel := context.WithTimeout(ctx, taskTimeout)
			defer cancel()
			_, _ = PruneStale(tctx, pruner, cfg.RetentionDays, time.Now(), logger)
		})
		if err != nil {
			return fmt.Errorf("prune cron %q: %w", cfg.PruneCron, err)
		}
	}

	logger.Info("Maintenance cron started",
		"dispatch", cfg.DispatchCron, "prune", cfg.PruneCron, "retention_days", cfg.RetentionDays)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("Maintenance cron stopped")
	return nil
}

func runDispatch(ctx context.Context, runner Runner, logger *slog.Logger) {
	res, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Scheduled dispatch failed", "error", err)
		return
	}
	if !res.OK() {
		logger.Warn("Scheduled dispatch finished with failures", "summary", res.Summary())
	}
}

// PruneStale removes partitions older than retentionDays before now.
func PruneStale(ctx context.Context, pruner Pruner, retentionDays int, now time.Time, logger *slog.Logger) ([]string, error) {
	cutoff := now.UTC().AddDate(0, 0, -retentionDays)
	pruned, err := pruner.Prune(ctx, cutoff)
	if err != nil {
		logger.Warn("Prune: failed to remove stale partitions", "error", err)
		return nil, err
	}
	if len(pruned) > 0 {
		logger.Info("Prune: removed stale partitions", "count", len(pruned), "days", pruned)
	}
	return pruned, nil
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
