package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vmarinoff/firealert/internal/geo"
)

func TestReportEventKey(t *testing.T) {
	assert.Equal(t, "report:42", ReportEventKey(42))
}

func TestHotspotEventKey_Stability(t *testing.T) {
	now := time.Now()

	// Two centroids in the same 0.02 degree cell share one key regardless of
	// when they were observed.
	a := HotspotEventKey(geo.Point{Lat: 42.705, Lng: 23.301}, 0, now)
	b := HotspotEventKey(geo.Point{Lat: 42.703, Lng: 23.299}, 0, now.Add(72*time.Hour))
	assert.Equal(t, a, b)
	assert.Equal(t, "hotspot:42.70:23.30", a)
}

func TestHotspotEventKey_AdjacentCells(t *testing.T) {
	now := time.Now()
	a := HotspotEventKey(geo.Point{Lat: 42.705, Lng: 23.301}, 0, now)
	b := HotspotEventKey(geo.Point{Lat: 42.715, Lng: 23.301}, 0, now)
	assert.NotEqual(t, a, b, "a drift across the cell boundary changes the key")
}

func TestHotspotEventKey_NegativeCoordinates(t *testing.T) {
	key := HotspotEventKey(geo.Point{Lat: -33.870, Lng: -70.650}, 0, time.Now())
	assert.Equal(t, "hotspot:-33.88:-70.66", key)
}

func TestHotspotEventKey_DayBucket(t *testing.T) {
	t0 := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	p := geo.Point{Lat: 42.705, Lng: 23.301}

	// Within the bucket the key is stable; past it the key rolls over.
	assert.Equal(t,
		HotspotEventKey(p, 7, t0),
		HotspotEventKey(p, 7, t0.Add(24*time.Hour)))
	assert.NotEqual(t,
		HotspotEventKey(p, 7, t0),
		HotspotEventKey(p, 7, t0.Add(8*24*time.Hour)))
}

func TestClampRadiusKm(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, DefaultRadiusKm},
		{-3, DefaultRadiusKm},
		{0.5, MinRadiusKm},
		{15, 15},
		{200, 200},
		{1000, MaxRadiusKm},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ClampRadiusKm(tt.in), 1e-9, "radius %v", tt.in)
	}
}

func TestSearchRadiusM(t *testing.T) {
	assert.InDelta(t, 15000, (&Subscription{RadiusKm: 15}).SearchRadiusM(), 1e-9)
	// Match-time clamps are tighter than the stored bounds.
	assert.InDelta(t, 200, (&Subscription{RadiusKm: 0.1}).SearchRadiusM(), 1e-9)
	assert.InDelta(t, 120000, (&Subscription{RadiusKm: 200}).SearchRadiusM(), 1e-9)
}
