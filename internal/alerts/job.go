package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmarinoff/firealert/internal/channel"
	"github.com/vmarinoff/firealert/internal/firms"
	"github.com/vmarinoff/firealert/internal/geo"
)

// --------------------------------------------------------------------------
// Collaborator interfaces — satisfied by Store, firms.Client and the channel
// adapters in production, by doubles in tests.
// --------------------------------------------------------------------------

// SubscriptionSource reads alert subscriptions.
type SubscriptionSource interface {
	Active(ctx context.Context) ([]Subscription, error)
	ByID(ctx context.Context, id int64) (*Subscription, error)
}

// ReportSource reads confirmed fire reports.
type ReportSource interface {
	ActiveInBounds(ctx context.Context, b geo.BBox) ([]FireReport, error)
}

// HotspotSource fetches satellite hotspots.
type HotspotSource interface {
	FetchHotspots(ctx context.Context, q firms.Query) ([]firms.Hotspot, error)
}

// Ledger is the delivery idempotence record.
type Ledger interface {
	AlreadyDelivered(ctx context.Context, subID int64, eventKey string) (bool, error)
	RecordDelivery(ctx context.Context, subID int64, eventKey string, meta map[string]any) error
}

// EmailChannel sends one email.
type EmailChannel interface {
	Send(ctx context.Context, to, subject, html, text string) channel.Result
}

// SMSChannel sends one SMS.
type SMSChannel interface {
	Send(ctx context.Context, phone, message string) channel.Result
}

// --------------------------------------------------------------------------
// Job
// --------------------------------------------------------------------------

// Job is the notification sweep. Construct with NewJob; all dependencies are
// required except Email/SMS, which may be nil when a channel is not deployed.
type Job struct {
	subs    SubscriptionSource
	reports ReportSource
	spots   HotspotSource
	ledger  Ledger
	email   EmailChannel
	sms     SMSChannel
	logger  *slog.Logger

	baseURL string // unsubscribe links in email bodies
	keyDays int    // hotspot key time bucket, 0 = time-bucket-free
	now     func() time.Time
}

// NewJob wires a notification sweep.
func NewJob(subs SubscriptionSource, reports ReportSource, spots HotspotSource,
	ledger Ledger, email EmailChannel, sms SMSChannel,
	baseURL string, hotspotKeyDays int, logger *slog.Logger,
) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		subs:    subs,
		reports: reports,
		spots:   spots,
		ledger:  ledger,
		email:   email,
		sms:     sms,
		logger:  logger,
		baseURL: baseURL,
		keyDays: hotspotKeyDays,
		now:     time.Now,
	}
}

// Options scope a single run.
type Options struct {
	// OnlySubscriptionID limits the run to one subscription. Zero means all
	// active subscriptions.
	OnlySubscriptionID int64
	// LimitPerSource overrides the per-source delivery cap. Zero or negative
	// means DefaultLimitPerSource.
	LimitPerSource int
}

// Summary is the run-level result of a sweep.
type Summary struct {
	TotalSubscriptions int `json:"totalSubscriptions"`
	TotalCandidates    int `json:"totalCandidates"`
	TotalDelivered     int `json:"totalDelivered"`
	SubscriptionErrors int `json:"subscriptionErrors"`
}

// Run executes one sweep. Subscriptions are processed sequentially; a
// failure in one is logged and counted but never aborts the rest.
func (j *Job) Run(ctx context.Context, opts Options) (Summary, error) {
	limit := opts.LimitPerSource
	if limit <= 0 {
		limit = DefaultLimitPerSource
	}

	var subs []Subscription
	if opts.OnlySubscriptionID != 0 {
		sub, err := j.subs.ByID(ctx, opts.OnlySubscriptionID)
		if err != nil {
			return Summary{}, fmt.Errorf("load subscription %d: %w", opts.OnlySubscriptionID, err)
		}
		if sub != nil {
			subs = []Subscription{*sub}
		}
	} else {
		var err error
		subs, err = j.subs.Active(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("load active subscriptions: %w", err)
		}
	}

	summary := Summary{TotalSubscriptions: len(subs)}
	start := j.now()
	j.logger.Info("Notification sweep started", "subscriptions", len(subs), "limit_per_source", limit)

	for i := range subs {
		candidates, delivered, err := j.processSubscription(ctx, &subs[i], limit)
		summary.TotalCandidates += candidates
		summary.TotalDelivered += delivered
		if err != nil {
			summary.SubscriptionErrors++
			j.logger.Error("Subscription processing failed",
				"subscription_id", subs[i].ID, "error", err)
		}
	}

	j.logger.Info("Notification sweep completed",
		"subscriptions", summary.TotalSubscriptions,
		"candidates", summary.TotalCandidates,
		"delivered", summary.TotalDelivered,
		"errors", summary.SubscriptionErrors,
		"duration", j.now().Sub(start).Round(time.Millisecond))
	return summary, nil
}

// processSubscription runs both source branches for one subscription.
// Returns candidate and delivered counts; the error is the subscription-level
// fault, branch-level faults are logged and absorbed.
func (j *Job) processSubscription(ctx context.Context, sub *Subscription, limit int) (candidates, delivered int, err error) {
	radiusM := sub.SearchRadiusM()
	bounds := geo.BoundsAround(sub.Center(), radiusM)

	// Confirmed reports are fetched even when the subscription opts out of
	// report alerts: the hotspot dedup needs their centers either way.
	reports, reportsErr := j.reports.ActiveInBounds(ctx, bounds)
	if reportsErr != nil {
		j.logger.Warn("Report query failed, skipping report branch",
			"subscription_id", sub.ID, "error", reportsErr)
	}

	if sub.NotifyReports && reportsErr == nil {
		c, d := j.reportBranch(ctx, sub, reports, radiusM, limit)
		candidates += c
		delivered += d
	}

	if sub.NotifyHotspots {
		c, d, branchErr := j.hotspotBranch(ctx, sub, reports, radiusM, bounds, limit)
		candidates += c
		delivered += d
		if branchErr != nil {
			j.logger.Warn("Hotspot branch failed, skipping",
				"subscription_id", sub.ID, "error", branchErr)
		}
	}

	if reportsErr != nil {
		return candidates, delivered, fmt.Errorf("reports query: %w", reportsErr)
	}
	return candidates, delivered, nil
}

func (j *Job) reportBranch(ctx context.Context, sub *Subscription, reports []FireReport, radiusM float64, limit int) (candidates, delivered int) {
	for i := range reports {
		if delivered >= limit {
			break
		}
		r := &reports[i]
		candidates++

		distM := geo.HaversineMeters(sub.Center(), r.Center())
		if distM > radiusM {
			continue
		}

		key := ReportEventKey(r.ID)
		done, err := j.ledger.AlreadyDelivered(ctx, sub.ID, key)
		if err != nil {
			j.logger.Warn("Ledger check failed", "subscription_id", sub.ID, "event_key", key, "error", err)
			continue
		}
		if done {
			continue
		}

		msg := reportMessage(sub, r, distM, j.baseURL)
		if j.deliver(ctx, sub, key, msg, map[string]any{
			"type":      "report",
			"reportId":  r.ID,
			"distanceM": int(distM),
		}) {
			delivered++
		}
	}
	return candidates, delivered
}

func (j *Job) hotspotBranch(ctx context.Context, sub *Subscription, reports []FireReport, radiusM float64, bounds geo.BBox, limit int) (candidates, delivered int, err error) {
	known := make([]geo.Point, 0, len(reports))
	for i := range reports {
		known = append(known, reports[i].Center())
	}

	hotspots, err := j.spots.FetchHotspots(ctx, firms.Query{
		Bounds:         bounds,
		DaysBack:       HotspotDaysBack,
		MinConfidence:  HotspotMinConfidence,
		ClusterRadiusM: HotspotClusterRadiusM,
		DedupRadiusM:   HotspotDedupRadiusM,
		KnownFires:     known,
	})
	if err != nil {
		return 0, 0, err
	}

	for i := range hotspots {
		if delivered >= limit {
			break
		}
		h := &hotspots[i]
		candidates++

		distM := geo.HaversineMeters(sub.Center(), h.Center)
		if distM > radiusM {
			continue
		}

		key := HotspotEventKey(h.Center, j.keyDays, j.now())
		done, checkErr := j.ledger.AlreadyDelivered(ctx, sub.ID, key)
		if checkErr != nil {
			j.logger.Warn("Ledger check failed", "subscription_id", sub.ID, "event_key", key, "error", checkErr)
			continue
		}
		if done {
			continue
		}

		msg := hotspotMessage(sub, h, distM, j.baseURL)
		if j.deliver(ctx, sub, key, msg, map[string]any{
			"type":       "hotspot",
			"lat":        h.Center.Lat,
			"lng":        h.Center.Lng,
			"count":      h.Count,
			"frpTotal":   h.FRPTotal,
			"confidence": h.Confidence,
			"distanceM":  int(distM),
		}) {
			delivered++
		}
	}
	return candidates, delivered, nil
}

// deliver attempts every configured channel independently and records the
// ledger entry if at least one succeeded. Channel adapters never error; a
// failed channel only means the other one carries the notification.
func (j *Job) deliver(ctx context.Context, sub *Subscription, eventKey string, msg message, meta map[string]any) bool {
	var anyOK bool

	if j.email != nil && sub.Email != "" {
		res := j.email.Send(ctx, sub.Email, msg.subject, msg.html, msg.text)
		if res.OK {
			anyOK = true
			meta["emailId"] = res.ID
		} else {
			j.logger.Warn("Email channel failed",
				"subscription_id", sub.ID, "event_key", eventKey, "error", res.Error)
		}
	}

	if j.sms != nil && sub.Phone != "" {
		res := j.sms.Send(ctx, sub.Phone, msg.sms)
		if res.OK {
			anyOK = true
			meta["smsId"] = res.ID
		} else {
			j.logger.Warn("SMS channel failed",
				"subscription_id", sub.ID, "event_key", eventKey, "error", res.Error)
		}
	}

	if !anyOK {
		return false
	}

	if err := j.ledger.RecordDelivery(ctx, sub.ID, eventKey, meta); err != nil {
		// The send went out but the record failed; the next run may resend.
		// Accepted over holding a transaction across external calls.
		j.logger.Error("Failed to record delivery",
			"subscription_id", sub.ID, "event_key", eventKey, "error", err)
		return false
	}

	j.logger.Info("Notification delivered", "subscription_id", sub.ID, "event_key", eventKey)
	return true
}
