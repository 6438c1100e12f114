package firms

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarinoff/firealert/internal/geo"
)

const areaCSVHeader = "latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight"

func testClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient("https://firms.test", "test-key", nil)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func registerSource(source, body string, status int) {
	httpmock.RegisterResponder(http.MethodGet,
		`=~^https://firms\.test/api/area/csv/test-key/`+source+`/`,
		httpmock.NewStringResponder(status, body))
}

func TestParseAreaCSV(t *testing.T) {
	body := areaCSVHeader + "\n" +
		"42.70000,23.30000,331.2,0.39,0.36,2024-08-14,0112,N,VIIRS,n,2.0NRT,290.1,4.52,N\n" +
		"42.70200,23.30100,345.8,0.39,0.36,2024-08-14,0112,N,VIIRS,h,2.0NRT,295.3,7.10,N\n"

	detections, err := parseAreaCSV(strings.NewReader(body), "VIIRS_SNPP_NRT")
	require.NoError(t, err)
	require.Len(t, detections, 2)

	d := detections[0]
	assert.InDelta(t, 42.7, d.Lat, 1e-9)
	assert.InDelta(t, 23.3, d.Lng, 1e-9)
	assert.InDelta(t, 4.52, d.FRP, 1e-9)
	assert.InDelta(t, 60, d.Confidence, 1e-9) // "n" maps to 60
	assert.Equal(t, "N", d.Satellite)
	assert.Equal(t, "VIIRS_SNPP_NRT", d.Source)
	assert.Equal(t, time.Date(2024, 8, 14, 1, 12, 0, 0, time.UTC), d.AcquiredAt)

	assert.InDelta(t, 90, detections[1].Confidence, 1e-9) // "h" maps to 90
}

func TestParseAreaCSV_HeaderOnly(t *testing.T) {
	detections, err := parseAreaCSV(strings.NewReader(areaCSVHeader+"\n"), "VIIRS_SNPP_NRT")
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestParseAreaCSV_NoDataBody(t *testing.T) {
	detections, err := parseAreaCSV(strings.NewReader("No data found for this request\n"), "VIIRS_SNPP_NRT")
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestParseAreaCSV_MissingColumns(t *testing.T) {
	_, err := parseAreaCSV(strings.NewReader("foo,bar\n1,2\n"), "VIIRS_SNPP_NRT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"l", 25},
		{"n", 60},
		{"h", 90},
		{"H", 90},
		{"83", 83},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseConfidence(tt.in), 1e-9, "confidence %q", tt.in)
	}
}

func TestFetchHotspots(t *testing.T) {
	c := testClient(t)

	snpp := areaCSVHeader + "\n" +
		// Two nearby detections forming one cluster.
		"42.70000,23.30000,331.2,0.39,0.36,2024-08-14,0112,N,VIIRS,n,2.0NRT,290.1,4.52,N\n" +
		"42.70200,23.30100,345.8,0.39,0.36,2024-08-14,0112,N,VIIRS,h,2.0NRT,295.3,7.10,N\n" +
		// Low-confidence detection, discarded by the floor.
		"42.80000,23.40000,300.0,0.39,0.36,2024-08-14,0112,N,VIIRS,l,2.0NRT,285.0,1.00,N\n" +
		// Detection sitting on a confirmed fire, dropped by dedup.
		"42.75000,23.35000,360.0,0.39,0.36,2024-08-14,0112,N,VIIRS,h,2.0NRT,300.0,9.00,N\n"
	registerSource("VIIRS_SNPP_NRT", snpp, http.StatusOK)
	registerSource("VIIRS_NOAA20_NRT", areaCSVHeader+"\n", http.StatusOK)

	hotspots, err := c.FetchHotspots(context.Background(), Query{
		Bounds:         geo.BBox{West: 23.0, South: 42.5, East: 23.6, North: 43.0},
		DaysBack:       1,
		MinConfidence:  35,
		ClusterRadiusM: 650,
		DedupRadiusM:   600,
		KnownFires:     []geo.Point{{Lat: 42.7500, Lng: 23.3500}},
	})
	require.NoError(t, err)

	require.Len(t, hotspots, 1)
	h := hotspots[0]
	assert.Equal(t, 2, h.Count)
	assert.InDelta(t, 11.62, h.FRPTotal, 1e-9)
	assert.InDelta(t, 75, h.Confidence, 1e-9)
}

func TestFetchHotspots_UpstreamFailure(t *testing.T) {
	c := testClient(t)
	registerSource("VIIRS_SNPP_NRT", "Internal error", http.StatusInternalServerError)
	registerSource("VIIRS_NOAA20_NRT", areaCSVHeader+"\n", http.StatusOK)

	_, err := c.FetchHotspots(context.Background(), Query{
		Bounds:   geo.BBox{West: 23.0, South: 42.5, East: 23.6, North: 43.0},
		DaysBack: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VIIRS_SNPP_NRT")
}

func TestFetchDetections_NoAPIKey(t *testing.T) {
	c := NewClient("", "", nil)
	_, err := c.FetchDetections(context.Background(), geo.BBox{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}
