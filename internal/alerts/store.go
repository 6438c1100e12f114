package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarinoff/firealert/internal/geo"
)

// ErrNoContact is returned when a subscription is created without any
// deliverable channel.
var ErrNoContact = errors.New("subscription needs an email or a phone number")

// Store persists subscriptions, reads confirmed fire reports, and keeps the
// delivery ledger. All queries run through prepared statements registered by
// the db package.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

// Active returns every active subscription.
func (s *Store) Active(ctx context.Context) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, "active_subscriptions")
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ByID returns one active subscription, or nil if it does not exist or was
// unsubscribed.
func (s *Store) ByID(ctx context.Context, id int64) (*Subscription, error) {
	rows, err := s.pool.Query(ctx, "subscription_by_id", id)
	if err != nil {
		return nil, fmt.Errorf("query subscription %d: %w", id, err)
	}
	defer rows.Close()

	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// CreateParams are the user-supplied fields of a new subscription.
type CreateParams struct {
	UserID         *int64
	Email          string
	Phone          string
	Lat            float64
	Lng            float64
	RadiusKm       float64
	NotifyReports  bool
	NotifyHotspots bool
}

// Create inserts a new active subscription. The radius is clamped to
// [1, 200] km (default 15) and an unsubscribe token is generated.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Subscription, error) {
	if p.Email == "" && p.Phone == "" {
		return nil, ErrNoContact
	}

	sub := Subscription{
		UserID:           p.UserID,
		Email:            p.Email,
		Phone:            p.Phone,
		Lat:              p.Lat,
		Lng:              p.Lng,
		RadiusKm:         ClampRadiusKm(p.RadiusKm),
		NotifyReports:    p.NotifyReports,
		NotifyHotspots:   p.NotifyHotspots,
		Active:           true,
		UnsubscribeToken: uuid.NewString(),
	}

	err := s.pool.QueryRow(ctx, "insert_subscription",
		sub.UserID, sub.Email, sub.Phone, sub.Lat, sub.Lng, sub.RadiusKm,
		sub.NotifyReports, sub.NotifyHotspots, sub.UnsubscribeToken,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return &sub, nil
}

// EnsureForVolunteer creates the default 50 km subscription when a volunteer
// profile is completed, unless the user already has an active one.
func (s *Store) EnsureForVolunteer(ctx context.Context, userID int64, email, phone string, center geo.Point) (*Subscription, error) {
	var existing int64
	err := s.pool.QueryRow(ctx, "subscription_for_user", userID).Scan(&existing)
	switch {
	case err == nil:
		return s.ByID(ctx, existing)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("check existing subscription: %w", err)
	}

	return s.Create(ctx, CreateParams{
		UserID:         &userID,
		Email:          email,
		Phone:          phone,
		Lat:            center.Lat,
		Lng:            center.Lng,
		RadiusKm:       VolunteerRadiusKm,
		NotifyReports:  true,
		NotifyHotspots: true,
	})
}

// DeactivateByToken soft-deletes the subscription carrying the unsubscribe
// token. Reports whether a row was affected. Rows are never hard-deleted.
func (s *Store) DeactivateByToken(ctx context.Context, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "deactivate_subscription", token)
	if err != nil {
		return false, fmt.Errorf("deactivate subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSubscriptions(rows pgx.Rows) ([]Subscription, error) {
	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Email, &sub.Phone,
			&sub.Lat, &sub.Lng, &sub.RadiusKm,
			&sub.NotifyReports, &sub.NotifyHotspots,
			&sub.Active, &sub.UnsubscribeToken, &sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// --------------------------------------------------------------------------
// Fire reports (read-only input)
// --------------------------------------------------------------------------

// ActiveInBounds returns active confirmed reports whose stored point falls
// inside the bounding box. A cheap rectangular pre-filter; callers apply the
// exact haversine check.
func (s *Store) ActiveInBounds(ctx context.Context, b geo.BBox) ([]FireReport, error) {
	rows, err := s.pool.Query(ctx, "active_reports_in_bounds", b.West, b.South, b.East, b.North)
	if err != nil {
		return nil, fmt.Errorf("query active reports: %w", err)
	}
	defer rows.Close()

	var reports []FireReport
	for rows.Next() {
		var r FireReport
		if err := rows.Scan(&r.ID, &r.Title, &r.Status, &r.Lat, &r.Lng, &r.RadiusM, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// --------------------------------------------------------------------------
// Delivery ledger
// --------------------------------------------------------------------------

// AlreadyDelivered reports whether the (subscription, event key) pair has a
// ledger entry.
func (s *Store) AlreadyDelivered(ctx context.Context, subID int64, eventKey string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, "delivery_exists", subID, eventKey).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return true, nil
}

// RecordDelivery inserts a ledger entry. A unique violation (a concurrent
// run recorded the same pair first) counts as success: the insert uses
// ON CONFLICT DO NOTHING, so the operation is idempotent under races.
func (s *Store) RecordDelivery(ctx context.Context, subID int64, eventKey string, meta map[string]any) error {
	if _, err := s.pool.Exec(ctx, "insert_delivery", subID, eventKey, meta); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// PruneDeliveries removes ledger entries older than the retention window.
// Only called by the optional retention sweep; the default configuration
// keeps the ledger append-only.
func (s *Store) PruneDeliveries(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := s.pool.Exec(ctx, "prune_deliveries", retentionDays)
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}
