package firms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func det(lat, lng, frp, conf float64, sat, source string, at time.Time) Detection {
	return Detection{
		Lat: lat, Lng: lng, FRP: frp, Confidence: conf,
		Satellite: sat, Source: source, AcquiredAt: at,
	}
}

func TestCluster_MergesNearbyDetections(t *testing.T) {
	t0 := time.Date(2024, 8, 14, 1, 12, 0, 0, time.UTC)
	t1 := t0.Add(90 * time.Minute)

	// Two detections ~220 m apart plus one ~5 km away.
	detections := []Detection{
		det(42.7000, 23.3000, 4.5, 60, "N", "VIIRS_SNPP_NRT", t0),
		det(42.7020, 23.3000, 2.5, 90, "1", "VIIRS_NOAA20_NRT", t1),
		det(42.7450, 23.3000, 8.0, 90, "N", "VIIRS_SNPP_NRT", t0),
	}

	hotspots := Cluster(detections, 650)
	require.Len(t, hotspots, 2)

	var merged, lone *Hotspot
	for i := range hotspots {
		if hotspots[i].Count == 2 {
			merged = &hotspots[i]
		} else {
			lone = &hotspots[i]
		}
	}
	require.NotNil(t, merged)
	require.NotNil(t, lone)

	assert.InDelta(t, 42.7010, merged.Center.Lat, 1e-6)
	assert.InDelta(t, 23.3000, merged.Center.Lng, 1e-6)
	assert.InDelta(t, 7.0, merged.FRPTotal, 1e-9)
	assert.InDelta(t, 75, merged.Confidence, 1e-9)
	assert.Equal(t, []string{"1", "N"}, merged.Satellites)
	assert.Equal(t, []string{"VIIRS_NOAA20_NRT", "VIIRS_SNPP_NRT"}, merged.Sources)
	assert.Equal(t, t0, merged.FirstSeenAt)
	assert.Equal(t, t1, merged.LastSeenAt)

	assert.Equal(t, 1, lone.Count)
	assert.InDelta(t, 8.0, lone.FRPTotal, 1e-9)
}

func TestCluster_EmptyInput(t *testing.T) {
	assert.Empty(t, Cluster(nil, 650))
}

func TestCluster_SingleDetectionPassthrough(t *testing.T) {
	t0 := time.Date(2024, 8, 14, 1, 12, 0, 0, time.UTC)
	hotspots := Cluster([]Detection{det(42.7, 23.3, 3.2, 60, "N", "VIIRS_SNPP_NRT", t0)}, 650)

	require.Len(t, hotspots, 1)
	h := hotspots[0]
	assert.Equal(t, 1, h.Count)
	assert.Equal(t, t0, h.FirstSeenAt)
	assert.Equal(t, t0, h.LastSeenAt)
	assert.InDelta(t, 60, h.Confidence, 1e-9)
}
