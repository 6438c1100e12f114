package firms

import (
	"sort"

	"github.com/vmarinoff/firealert/internal/geo"
)

// Cluster merges detections lying within radiusM of each other into single
// hotspots. A detection joins the first existing cluster whose running
// centroid is within the radius; otherwise it seeds a new one. The centroid
// is the mean of member coordinates, confidence is the mean, FRP is summed,
// and the seen window spans the members' acquisition times.
//
// Greedy single-pass assignment is order-dependent at cluster boundaries;
// for the 650 m radius used in production the satellite footprint (~375 m
// VIIRS pixels) makes the ambiguous band negligible.
func Cluster(detections []Detection, radiusM float64) []Hotspot {
	if radiusM <= 0 {
		radiusM = 1
	}

	type cluster struct {
		members []Detection
		center  geo.Point
	}

	var clusters []*cluster
	for _, d := range detections {
		p := geo.Point{Lat: d.Lat, Lng: d.Lng}
		var joined *cluster
		for _, c := range clusters {
			if geo.HaversineMeters(c.center, p) <= radiusM {
				joined = c
				break
			}
		}
		if joined == nil {
			clusters = append(clusters, &cluster{members: []Detection{d}, center: p})
			continue
		}
		joined.members = append(joined.members, d)
		n := float64(len(joined.members))
		joined.center.Lat += (d.Lat - joined.center.Lat) / n
		joined.center.Lng += (d.Lng - joined.center.Lng) / n
	}

	hotspots := make([]Hotspot, 0, len(clusters))
	for _, c := range clusters {
		hotspots = append(hotspots, summarize(c.center, c.members))
	}
	return hotspots
}

func summarize(center geo.Point, members []Detection) Hotspot {
	h := Hotspot{
		Center: center,
		Count:  len(members),
	}

	satellites := map[string]bool{}
	sources := map[string]bool{}
	var confidenceSum float64

	for _, d := range members {
		h.FRPTotal += d.FRP
		confidenceSum += d.Confidence
		if d.Satellite != "" {
			satellites[d.Satellite] = true
		}
		if d.Source != "" {
			sources[d.Source] = true
		}
		if !d.AcquiredAt.IsZero() {
			if h.FirstSeenAt.IsZero() || d.AcquiredAt.Before(h.FirstSeenAt) {
				h.FirstSeenAt = d.AcquiredAt
			}
			if d.AcquiredAt.After(h.LastSeenAt) {
				h.LastSeenAt = d.AcquiredAt
			}
		}
	}

	if len(members) > 0 {
		h.Confidence = confidenceSum / float64(len(members))
	}
	h.Satellites = sortedKeys(satellites)
	h.Sources = sortedKeys(sources)
	return h
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
