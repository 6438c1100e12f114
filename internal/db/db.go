// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarinoff/firealert/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// InitSchema applies the embedded schema on a dedicated connection. Every
// statement is idempotent, so it can run on each deploy.
func InitSchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect for schema init: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const subscriptionColumns = "id, user_id, email, phone, lat, lng, radius_km, " +
	"notify_reports, notify_hotspots, active, unsubscribe_token, created_at"

// registerPreparedStatements registers all statements the API and the
// notification sweep use. Prepared statements eliminate parse overhead on
// every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Subscriptions
		"active_subscriptions": "SELECT " + subscriptionColumns +
			" FROM alert_subscriptions WHERE active ORDER BY id",
		"subscription_by_id": "SELECT " + subscriptionColumns +
			" FROM alert_subscriptions WHERE id = $1 AND active",
		"subscription_for_user": "SELECT id FROM alert_subscriptions" +
			" WHERE user_id = $1 AND active LIMIT 1",
		"insert_subscription": "INSERT INTO alert_subscriptions" +
			" (user_id, email, phone, lat, lng, radius_km, notify_reports, notify_hotspots, unsubscribe_token)" +
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)" +
			" RETURNING id, created_at",
		"deactivate_subscription": "UPDATE alert_subscriptions SET active = false" +
			" WHERE unsubscribe_token = $1 AND active",

		// Confirmed reports: rectangular pre-filter; the exact distance
		// check is the caller's job
		"active_reports_in_bounds": "SELECT id, title, status, lat, lng, radius_m, created_at" +
			" FROM fire_reports WHERE status = 'active'" +
			" AND lng BETWEEN $1 AND $3 AND lat BETWEEN $2 AND $4" +
			" ORDER BY created_at DESC",

		// Delivery ledger
		"delivery_exists": "SELECT 1 FROM alert_deliveries" +
			" WHERE subscription_id = $1 AND event_key = $2",
		"insert_delivery": "INSERT INTO alert_deliveries (subscription_id, event_key, meta)" +
			" VALUES ($1, $2, $3) ON CONFLICT (subscription_id, event_key) DO NOTHING",
		"prune_deliveries": "DELETE FROM alert_deliveries" +
			" WHERE delivered_at < now() - make_interval(days => $1)",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
