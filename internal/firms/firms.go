// Package firms fetches satellite fire detections from the NASA FIRMS area
// API, reduces noise by clustering nearby detections into logical hotspots,
// and drops detections that duplicate already-confirmed fire reports.
//
// Hotspots are deliberately ephemeral: they are recomputed on every fetch and
// never persisted. Deduplication across notification runs happens downstream
// via the delivery ledger's grid-cell event keys.
package firms

import (
	"time"

	"github.com/vmarinoff/firealert/internal/geo"
)

const (
	// DefaultBaseURL is the NASA FIRMS area API root.
	DefaultBaseURL = "https://firms.modaps.eosdis.nasa.gov"

	// MaxHotspots caps the clustered output of a single fetch.
	MaxHotspots = 200

	// DefaultClusterRadiusM merges detections into one hotspot. VIIRS pixels
	// are 375 m; adjacent pixels of one fire separate by roughly that much.
	DefaultClusterRadiusM = 650

	// PublicMinConfidence filters the map view. Below this the VIIRS
	// low-confidence grade dominates and the map fills with noise.
	PublicMinConfidence = 25

	// Requests per minute allowed against the FIRMS API. The published quota
	// is 5000 transactions per 10 minutes; stay far below it.
	requestsPerMinute = 30
)

// Satellite sources queried per fetch. VIIRS near-real-time only; MODIS
// resolution is too coarse for the 650 m clustering radius used downstream.
var defaultSources = []string{"VIIRS_SNPP_NRT", "VIIRS_NOAA20_NRT"}

// Detection is a single normalized satellite fire detection.
type Detection struct {
	Lat        float64
	Lng        float64
	FRP        float64 // fire radiative power, MW
	Confidence float64 // 0-100; VIIRS letter grades mapped in parseConfidence
	Satellite  string
	Source     string // feed the detection came from, e.g. VIIRS_SNPP_NRT
	AcquiredAt time.Time
	DayNight   string
}

// Hotspot is one raw detection or a cluster of nearby detections.
type Hotspot struct {
	Center      geo.Point `json:"center"`
	Count       int       `json:"count"`
	FRPTotal    float64   `json:"frpTotal"`
	Confidence  float64   `json:"confidence"` // mean over member detections
	Satellites  []string  `json:"satellites"`
	Sources     []string  `json:"sources"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// Query parameterizes a hotspot fetch.
type Query struct {
	Bounds         geo.BBox
	DaysBack       int     // recency window, 1-10
	MinConfidence  float64 // detections below are discarded
	ClusterRadiusM float64 // detections within merge into one hotspot
	DedupRadiusM   float64 // detections this close to a known fire are dropped
	KnownFires     []geo.Point
}
