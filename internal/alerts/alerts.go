// Package alerts implements proximity fire alerting: subscription and
// delivery-ledger stores, spatial matching of subscriptions against confirmed
// fire reports and satellite hotspots, and the notification sweep that fans
// matches out to email and SMS.
//
// Pipeline per subscription: bounding box → candidate events from both
// sources → exact haversine filter → ledger idempotence check → channel
// fan-out → ledger record. The sweep holds no state of its own, so it is safe
// to re-run at any frequency; the ledger's unique (subscription, event key)
// pair is the sole duplicate-suppression mechanism.
package alerts

import (
	"fmt"
	"math"
	"time"

	"github.com/vmarinoff/firealert/internal/geo"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// Subscription radius bounds, enforced at creation.
	MinRadiusKm     = 1
	MaxRadiusKm     = 200
	DefaultRadiusKm = 15

	// VolunteerRadiusKm is the radius of the subscription auto-created when a
	// volunteer profile is completed.
	VolunteerRadiusKm = 50

	// Effective search radius bounds applied at match time, meters.
	minSearchRadiusM = 200
	maxSearchRadiusM = 120000

	// DefaultLimitPerSource caps deliveries per source per subscription in a
	// single run.
	DefaultLimitPerSource = 3

	// HotspotGridDeg is the quantization grid for hotspot event keys
	// (~2.2 km cells). Coarse on purpose: a persistent fire reported at
	// slightly different centroids across fetches keeps the same key.
	HotspotGridDeg = 0.02

	// Production hotspot query parameters.
	HotspotDaysBack       = 1
	HotspotMinConfidence  = 35
	HotspotDedupRadiusM   = 600
	HotspotClusterRadiusM = 650
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Subscription is a standing request for fire alerts near a point.
type Subscription struct {
	ID               int64
	UserID           *int64
	Email            string
	Phone            string
	Lat              float64
	Lng              float64
	RadiusKm         float64
	NotifyReports    bool
	NotifyHotspots   bool
	Active           bool
	UnsubscribeToken string
	CreatedAt        time.Time
}

// Center returns the subscription's center point.
func (s *Subscription) Center() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

// SearchRadiusM returns the effective match radius in meters, clamped to
// [200 m, 120 km] regardless of the stored radius.
func (s *Subscription) SearchRadiusM() float64 {
	return clamp(s.RadiusKm*1000, minSearchRadiusM, maxSearchRadiusM)
}

// FireReport is a human-confirmed fire location owned by the reports CRUD
// subsystem. The sweep treats it as read-only input.
type FireReport struct {
	ID        int64
	Title     string
	Status    string
	Lat       float64
	Lng       float64
	RadiusM   float64
	CreatedAt time.Time
}

// Center returns the report's center point.
func (r *FireReport) Center() geo.Point {
	return geo.Point{Lat: r.Lat, Lng: r.Lng}
}

// --------------------------------------------------------------------------
// Event keys
// --------------------------------------------------------------------------

// ReportEventKey is stable for the life of a confirmed report.
func ReportEventKey(reportID int64) string {
	return fmt.Sprintf("report:%d", reportID)
}

// HotspotEventKey derives a ledger key from the hotspot's quantized grid
// cell. No time component by default: a persistent fire at the same location
// notifies once regardless of how many fetches report it. keyDays > 0
// appends a coarse day bucket, allowing re-notification after that many days.
func HotspotEventKey(center geo.Point, keyDays int, now time.Time) string {
	latCell := math.Round(center.Lat/HotspotGridDeg) * HotspotGridDeg
	lngCell := math.Round(center.Lng/HotspotGridDeg) * HotspotGridDeg
	key := fmt.Sprintf("hotspot:%.2f:%.2f", latCell, lngCell)
	if keyDays > 0 {
		key = fmt.Sprintf("%s:%d", key, now.UTC().Unix()/(int64(keyDays)*86400))
	}
	return key
}

// ClampRadiusKm bounds a requested subscription radius to [1, 200] km,
// substituting the default for non-positive input.
func ClampRadiusKm(radiusKm float64) float64 {
	if radiusKm <= 0 {
		return DefaultRadiusKm
	}
	return clamp(radiusKm, MinRadiusKm, MaxRadiusKm)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
