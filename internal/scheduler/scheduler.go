// Package scheduler drives periodic background work: the cron-scheduled
// notification sweep and the optional delivery ledger retention prune.
// All scheduled work is driven from Go since the API is already a
// persistent, long-running service (required for LISTEN/NOTIFY).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vmarinoff/firealert/internal/alerts"
)

// SweepRunner triggers one notification sweep. Satisfied by *alerts.Job.
type SweepRunner interface {
	Run(ctx context.Context, opts alerts.Options) (alerts.Summary, error)
}

// LedgerPruner removes old delivery records. Satisfied by *alerts.Store.
type LedgerPruner interface {
	PruneDeliveries(ctx context.Context, retentionDays int) (int64, error)
}

// Config controls the scheduled tasks. An empty cron spec or zero retention
// disables the respective task.
type Config struct {
	NotifyCron     string // sweep schedule, standard 5-field cron
	LimitPerSource int    // per-source delivery cap passed to the sweep
	RetentionDays  int    // ledger retention; 0 keeps the ledger append-only
}

// Start launches the cron scheduler and blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, runner SweepRunner, pruner LedgerPruner, cfg Config, logger *slog.Logger) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{logger}),
		cron.Recover(cronLogger{logger}),
	))

	if cfg.NotifyCron != "" {
		_, err := c.AddFunc(cfg.NotifyCron, func() {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if _, err := runner.Run(runCtx, alerts.Options{LimitPerSource: cfg.LimitPerSource}); err != nil {
				logger.Error("Scheduled sweep failed", "error", err)
			}
		})
		if err != nil {
			logger.Error("Invalid sweep cron spec, sweep disabled",
				"spec", cfg.NotifyCron, "error", err)
		}
	}

	if cfg.RetentionDays > 0 {
		_, err := c.AddFunc("30 3 * * *", func() {
			runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			removed, err := pruner.PruneDeliveries(runCtx, cfg.RetentionDays)
			if err != nil {
				logger.Warn("Ledger prune failed", "error", err)
				return
			}
			if removed > 0 {
				logger.Info("Ledger pruned", "removed", removed, "retention_days", cfg.RetentionDays)
			}
		})
		if err != nil {
			logger.Error("Failed to schedule ledger prune", "error", err)
		}
	}

	logger.Info("Scheduler started",
		"sweep_cron", cfg.NotifyCron,
		"retention_days", cfg.RetentionDays)

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("Scheduler stopped")
}

// cronLogger adapts slog to the cron logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
