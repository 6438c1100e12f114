// Command api is the FireAlert API server.
//
// Usage:
//
//	firealert-api
//	API_PORT=8080 firealert-api

// @title FireAlert API
// @version 1.0.0
// @description Geospatial fire alert API: subscription management, a clustered satellite hotspot feed, and the notification sweep that matches confirmed fire reports and NASA FIRMS hotspots against subscriber locations.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name FireAlert
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/vmarinoff/firealert/internal/alerts"
	"github.com/vmarinoff/firealert/internal/api"
	"github.com/vmarinoff/firealert/internal/cache"
	"github.com/vmarinoff/firealert/internal/channel"
	"github.com/vmarinoff/firealert/internal/config"
	"github.com/vmarinoff/firealert/internal/db"
	"github.com/vmarinoff/firealert/internal/firms"
	"github.com/vmarinoff/firealert/internal/listener"
	"github.com/vmarinoff/firealert/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(true)

	// Wire the sweep dependencies
	store := alerts.NewStore(pool.Pool)
	spots := firms.NewClient(cfg.FIRMSBaseURL, cfg.FIRMSAPIKey, logger)

	var emailCh alerts.EmailChannel
	if cfg.BrevoAPIKey != "" && cfg.EmailFrom != "" {
		emailCh = channel.NewEmailSender(channel.EmailConfig{
			APIKey:   cfg.BrevoAPIKey,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		}, logger)
		logger.Info("Email channel enabled", "from", cfg.EmailFrom)
	} else {
		logger.Info("Email channel disabled (no BREVO_API_KEY/EMAIL_FROM)")
	}

	var smsCh alerts.SMSChannel
	if cfg.SMSGatewayURL != "" && cfg.SMSUser != "" {
		smsCh = channel.NewSMSSender(channel.SMSConfig{
			GatewayURL:   cfg.SMSGatewayURL,
			Username:     cfg.SMSUser,
			Password:     cfg.SMSPass,
			SendInterval: cfg.SMSInterval,
		}, logger)
		logger.Info("SMS channel enabled")
	} else {
		logger.Info("SMS channel disabled (no SMS_GATEWAY_URL/SMS_USER)")
	}

	job := alerts.NewJob(store, store, spots, store, emailCh, smsCh,
		cfg.PublicBaseURL, cfg.HotspotKeyDays, logger)

	// Start LISTEN/NOTIFY consumer for real-time report events
	if cfg.ListenerEnabled {
		go listener.Start(ctx, cfg.DatabaseURL, job, cfg.LimitPerSource, logger)
	} else {
		logger.Info("Report listener disabled")
	}

	// Start cron scheduler (sweep + optional ledger retention)
	go scheduler.Start(ctx, job, store, scheduler.Config{
		NotifyCron:     cfg.NotifyCron,
		LimitPerSource: cfg.LimitPerSource,
		RetentionDays:  cfg.LedgerRetention,
	}, logger)

	// Create router
	router := api.NewRouter(pool.Pool, appCache, cfg, store, spots, job)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting FireAlert API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
