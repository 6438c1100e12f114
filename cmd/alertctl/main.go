// Command alertctl is the FireAlert operations CLI.
//
// Usage:
//
//	alertctl db init
//	alertctl notify run --subscription 42 --limit 5
//	alertctl hotspots fetch --west 22.3 --south 41.2 --east 28.6 --north 44.2
//	alertctl subscriptions list
//	alertctl subscriptions add --email user@example.com --lat 42.7 --lng 23.3 --radius 15
//	alertctl subscriptions deactivate --token <uuid>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vmarinoff/firealert/internal/alerts"
	"github.com/vmarinoff/firealert/internal/channel"
	"github.com/vmarinoff/firealert/internal/config"
	"github.com/vmarinoff/firealert/internal/db"
	"github.com/vmarinoff/firealert/internal/firms"
	"github.com/vmarinoff/firealert/internal/geo"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "alertctl",
		Short: "FireAlert operations CLI",
	}

	root.AddCommand(dbCmd())
	root.AddCommand(notifyCmd())
	root.AddCommand(hotspotsCmd())
	root.AddCommand(subscriptionsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// db command
// --------------------------------------------------------------------------

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database administration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Apply the schema (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.InitSchema(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// notify command
// --------------------------------------------------------------------------

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification sweep operations",
	}
	cmd.AddCommand(notifyRunCmd())
	return cmd
}

func notifyRunCmd() *cobra.Command {
	var subscriptionID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one notification sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := alerts.NewStore(pool.Pool)
				spots := firms.NewClient(cfg.FIRMSBaseURL, cfg.FIRMSAPIKey, logger)

				var emailCh alerts.EmailChannel
				if cfg.BrevoAPIKey != "" && cfg.EmailFrom != "" {
					emailCh = channel.NewEmailSender(channel.EmailConfig{
						APIKey:   cfg.BrevoAPIKey,
						From:     cfg.EmailFrom,
						FromName: cfg.EmailFromName,
					}, logger)
				}
				var smsCh alerts.SMSChannel
				if cfg.SMSGatewayURL != "" && cfg.SMSUser != "" {
					smsCh = channel.NewSMSSender(channel.SMSConfig{
						GatewayURL:   cfg.SMSGatewayURL,
						Username:     cfg.SMSUser,
						Password:     cfg.SMSPass,
						SendInterval: cfg.SMSInterval,
					}, logger)
				}

				job := alerts.NewJob(store, store, spots, store, emailCh, smsCh,
					cfg.PublicBaseURL, cfg.HotspotKeyDays, logger)

				start := time.Now()
				summary, err := job.Run(ctx, alerts.Options{
					OnlySubscriptionID: subscriptionID,
					LimitPerSource:     limit,
				})
				if err != nil {
					return err
				}
				logger.Info("Sweep finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"subscriptions", summary.TotalSubscriptions,
					"candidates", summary.TotalCandidates,
					"delivered", summary.TotalDelivered,
					"errors", summary.SubscriptionErrors)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&subscriptionID, "subscription", 0, "Limit the sweep to one subscription ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Per-source delivery cap (0 = default)")
	return cmd
}

// --------------------------------------------------------------------------
// hotspots command
// --------------------------------------------------------------------------

func hotspotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "Satellite hotspot operations",
	}
	cmd.AddCommand(hotspotsFetchCmd())
	return cmd
}

func hotspotsFetchCmd() *cobra.Command {
	var west, south, east, north, minConfidence float64
	var days int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and cluster FIRMS hotspots, print JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			spots := firms.NewClient(cfg.FIRMSBaseURL, cfg.FIRMSAPIKey, logger)
			hotspots, err := spots.FetchHotspots(ctx, firms.Query{
				Bounds:         geo.BBox{West: west, South: south, East: east, North: north},
				DaysBack:       days,
				MinConfidence:  minConfidence,
				ClusterRadiusM: firms.DefaultClusterRadiusM,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(hotspots)
		},
	}
	cmd.Flags().Float64Var(&west, "west", 22.3, "West longitude")
	cmd.Flags().Float64Var(&south, "south", 41.2, "South latitude")
	cmd.Flags().Float64Var(&east, "east", 28.6, "East longitude")
	cmd.Flags().Float64Var(&north, "north", 44.2, "North latitude")
	cmd.Flags().IntVar(&days, "days", 1, "Days back (1-10)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", firms.PublicMinConfidence, "Confidence floor (0-100)")
	return cmd
}

// --------------------------------------------------------------------------
// subscriptions command
// --------------------------------------------------------------------------

func subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Subscription administration",
	}
	cmd.AddCommand(subscriptionsListCmd())
	cmd.AddCommand(subscriptionsAddCmd())
	cmd.AddCommand(subscriptionsEnsureVolunteerCmd())
	cmd.AddCommand(subscriptionsDeactivateCmd())
	return cmd
}

func subscriptionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := alerts.NewStore(pool.Pool)
				subs, err := store.Active(ctx)
				if err != nil {
					return err
				}
				for _, s := range subs {
					fmt.Printf("%d\t%.4f,%.4f\tr=%.0fkm\temail=%s phone=%s reports=%t hotspots=%t\n",
						s.ID, s.Lat, s.Lng, s.RadiusKm, s.Email, s.Phone, s.NotifyReports, s.NotifyHotspots)
				}
				logger.Info("Active subscriptions", "count", len(subs))
				return nil
			})
		},
	}
}

func subscriptionsAddCmd() *cobra.Command {
	var email, phone string
	var lat, lng, radius float64
	var noReports, noHotspots bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if phone != "" {
					normalized, err := channel.NormalizeBGPhone(phone)
					if err != nil {
						return err
					}
					phone = normalized
				}

				store := alerts.NewStore(pool.Pool)
				sub, err := store.Create(ctx, alerts.CreateParams{
					Email:          email,
					Phone:          phone,
					Lat:            lat,
					Lng:            lng,
					RadiusKm:       radius,
					NotifyReports:  !noReports,
					NotifyHotspots: !noHotspots,
				})
				if err != nil {
					return err
				}
				logger.Info("Subscription created",
					"id", sub.ID, "radius_km", sub.RadiusKm, "token", sub.UnsubscribeToken)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Bulgarian mobile number")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	cmd.Flags().Float64Var(&radius, "radius", alerts.DefaultRadiusKm, "Radius in km")
	cmd.Flags().BoolVar(&noReports, "no-reports", false, "Skip confirmed report alerts")
	cmd.Flags().BoolVar(&noHotspots, "no-hotspots", false, "Skip satellite hotspot alerts")
	return cmd
}

func subscriptionsEnsureVolunteerCmd() *cobra.Command {
	var userID int64
	var email, phone string
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "ensure-volunteer",
		Short: "Create the default 50 km subscription for a volunteer, if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if userID <= 0 {
					return fmt.Errorf("--user is required")
				}
				if phone != "" {
					normalized, err := channel.NormalizeBGPhone(phone)
					if err != nil {
						return err
					}
					phone = normalized
				}

				store := alerts.NewStore(pool.Pool)
				sub, err := store.EnsureForVolunteer(ctx, userID, email, phone,
					geo.Point{Lat: lat, Lng: lng})
				if err != nil {
					return err
				}
				logger.Info("Volunteer subscription ensured",
					"id", sub.ID, "user_id", userID, "radius_km", sub.RadiusKm)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Platform user ID")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Bulgarian mobile number")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	return cmd
}

func subscriptionsDeactivateCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a subscription by unsubscribe token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if token == "" {
					return fmt.Errorf("--token is required")
				}
				store := alerts.NewStore(pool.Pool)
				ok, err := store.DeactivateByToken(ctx, token)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no active subscription with that token")
				}
				logger.Info("Subscription deactivated")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Unsubscribe token")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithPool handles config loading, DB connection, and context cancellation.
func runWithPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
