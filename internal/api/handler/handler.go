// Package handler provides HTTP handlers for all API endpoints.
// Handlers query Postgres directly via pgxpool — no service layer.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarinoff/firealert/internal/alerts"
	"github.com/vmarinoff/firealert/internal/api/respond"
	"github.com/vmarinoff/firealert/internal/cache"
	"github.com/vmarinoff/firealert/internal/config"
	"github.com/vmarinoff/firealert/internal/firms"
)

// SweepRunner triggers one notification sweep. Satisfied by *alerts.Job.
type SweepRunner interface {
	Run(ctx context.Context, opts alerts.Options) (alerts.Summary, error)
}

// SubscriptionStore is the subset of *alerts.Store the public endpoints use.
type SubscriptionStore interface {
	Create(ctx context.Context, p alerts.CreateParams) (*alerts.Subscription, error)
	DeactivateByToken(ctx context.Context, token string) (bool, error)
}

// HotspotFetcher serves the public hotspots endpoint. Satisfied by
// *firms.Client.
type HotspotFetcher interface {
	FetchHotspots(ctx context.Context, q firms.Query) ([]firms.Hotspot, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool   *pgxpool.Pool
	cache  *cache.Cache
	cfg    *config.Config
	store  SubscriptionStore
	spots  HotspotFetcher
	runner SweepRunner
}

// New creates a Handler with shared dependencies.
func New(pool *pgxpool.Pool, c *cache.Cache, cfg *config.Config,
	store SubscriptionStore, spots HotspotFetcher, runner SweepRunner,
) *Handler {
	return &Handler{
		pool:   pool,
		cache:  c,
		cfg:    cfg,
		store:  store,
		spots:  spots,
		runner: runner,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "FireAlert API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
