// Package listener provides a Postgres LISTEN/NOTIFY consumer for real-time
// fire report events. It holds a dedicated pgx connection (not from the
// pool) listening on the `fire_report_events` channel.
//
// When a confirmed report is inserted or re-activated, the Postgres trigger
// fires pg_notify and this consumer kicks off a notification sweep without
// waiting for the next cron tick. Events that arrive while a sweep is
// running coalesce into a single follow-up sweep.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vmarinoff/firealert/internal/alerts"
)

const (
	channel          = "fire_report_events"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// SweepRunner triggers one notification sweep. Satisfied by *alerts.Job.
type SweepRunner interface {
	Run(ctx context.Context, opts alerts.Options) (alerts.Summary, error)
}

// Start opens a dedicated connection and listens on the fire_report_events
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, runner SweepRunner, limitPerSource int, logger *slog.Logger) {
	// Buffer of one: a burst of events during a sweep collapses into a
	// single pending trigger.
	trigger := make(chan struct{}, 1)
	go sweepLoop(ctx, runner, limitPerSource, trigger, logger)

	backoff := reconnectBackoff
	for {
		err := listenLoop(ctx, dbURL, trigger, logger)
		if ctx.Err() != nil {
			logger.Info("Report listener stopped (context cancelled)")
			return
		}

		logger.Error("Report listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, trigger chan<- struct{}, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Report listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		logger.Info("Fire report event received", "report_id", notification.Payload)

		select {
		case trigger <- struct{}{}:
		default:
			// A sweep is already pending; this event rides along.
		}
	}
}

// sweepLoop serializes triggered sweeps so concurrent events never run two
// sweeps at once.
func sweepLoop(ctx context.Context, runner SweepRunner, limitPerSource int, trigger <-chan struct{}, logger *slog.Logger) {
	for {
		select {
		case <-trigger:
		case <-ctx.Done():
			return
		}

		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		summary, err := runner.Run(runCtx, alerts.Options{LimitPerSource: limitPerSource})
		cancel()
		if err != nil {
			logger.Error("Event-triggered sweep failed", "error", err)
			continue
		}
		logger.Info("Event-triggered sweep completed",
			"candidates", summary.TotalCandidates,
			"delivered", summary.TotalDelivered)
	}
}
