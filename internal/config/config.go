// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/alertctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// PublicBaseURL is the externally reachable base of this service, used
	// for unsubscribe links in emails. Empty disables the links.
	PublicBaseURL string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CronSecret guards the internal notify-run endpoint. Empty disables it.
	CronSecret string

	// Email channel (Brevo)
	BrevoAPIKey   string
	EmailFrom     string
	EmailFromName string

	// SMS channel
	SMSGatewayURL string
	SMSUser       string
	SMSPass       string
	SMSInterval   time.Duration

	// NASA FIRMS
	FIRMSAPIKey  string
	FIRMSBaseURL string

	// Notification sweep
	NotifyCron       string // cron spec, empty disables the scheduler
	LimitPerSource   int
	HotspotKeyDays   int // >0 adds a time bucket to hotspot event keys
	LedgerRetention  int // days; 0 keeps the ledger append-only
	ListenerEnabled  bool
	HotspotsCacheTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		PublicBaseURL: strings.TrimRight(envOr("PUBLIC_BASE_URL", ""), "/"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CronSecret: envOr("CRON_SECRET", ""),

		BrevoAPIKey:   envOr("BREVO_API_KEY", ""),
		EmailFrom:     envOr("EMAIL_FROM", ""),
		EmailFromName: envOr("EMAIL_FROM_NAME", "FireAlert"),

		SMSGatewayURL: envOr("SMS_GATEWAY_URL", ""),
		SMSUser:       envOr("SMS_USER", ""),
		SMSPass:       envOr("SMS_PASS", ""),
		SMSInterval:   time.Duration(envInt("SMS_INTERVAL_MS", 1000)) * time.Millisecond,

		FIRMSAPIKey:  envOr("FIRMS_API_KEY", ""),
		FIRMSBaseURL: envOr("FIRMS_BASE_URL", ""),

		NotifyCron:       envOr("NOTIFY_CRON", "*/10 * * * *"),
		LimitPerSource:   envInt("NOTIFY_LIMIT_PER_SOURCE", 3),
		HotspotKeyDays:   envInt("HOTSPOT_KEY_DAYS", 0),
		LedgerRetention:  envInt("LEDGER_RETENTION_DAYS", 0),
		ListenerEnabled:  envBool("LISTENER_ENABLED", true),
		HotspotsCacheTTL: time.Duration(envInt("HOTSPOTS_CACHE_TTL_SECONDS", 600)) * time.Second,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
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
