// Package geo provides the spherical-earth math shared by the alert matcher,
// the hotspot feed, and the subscription stores: great-circle distance,
// bounding-box half-spans for cheap SQL pre-filters, and circle polygons for
// map display.
package geo

import "math"

// Mean Earth radius in meters.
const earthRadiusM = 6371000

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BBox is a west/south/east/north bounding box in degrees.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains reports whether p falls inside the box (inclusive).
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DegRadius converts a metric radius around a latitude into latitude and
// longitude half-spans in degrees. The longitude span is corrected by
// cos(lat); the divisor is clamped at 0.2 so the span stays finite near the
// poles. The resulting box overshoots the true circle at the corners — callers
// re-check candidates with HaversineMeters.
func DegRadius(lat, radiusM float64) (latSpan, lngSpan float64) {
	latSpan = radiusM / 111320.0
	cosLat := math.Cos(toRad(lat))
	if cosLat < 0.2 {
		cosLat = 0.2
	}
	lngSpan = radiusM / (111320.0 * cosLat)
	return latSpan, lngSpan
}

// BoundsAround returns the bounding box spanning radiusM around center.
func BoundsAround(center Point, radiusM float64) BBox {
	latSpan, lngSpan := DegRadius(center.Lat, radiusM)
	return BBox{
		West:  center.Lng - lngSpan,
		South: center.Lat - latSpan,
		East:  center.Lng + lngSpan,
		North: center.Lat + latSpan,
	}
}

// CirclePolygon approximates a geodesic circle as a closed ring of steps+1
// points (first == last). Display only.
func CirclePolygon(center Point, radiusM float64, steps int) []Point {
	if steps < 3 {
		steps = 64
	}
	latSpan, lngSpan := DegRadius(center.Lat, radiusM)
	ring := make([]Point, 0, steps+1)
	for i := 0; i < steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		ring = append(ring, Point{
			Lat: center.Lat + latSpan*math.Sin(theta),
			Lng: center.Lng + lngSpan*math.Cos(theta),
		})
	}
	ring = append(ring, ring[0])
	return ring
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
