package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vmarinoff/firealert/internal/api/respond"
	"github.com/vmarinoff/firealert/internal/cache"
	"github.com/vmarinoff/firealert/internal/firms"
	"github.com/vmarinoff/firealert/internal/geo"
)

// Country-wide default view when the caller sends no bounding box.
var defaultHotspotBounds = geo.BBox{West: 22.3, South: 41.2, East: 28.6, North: 44.2}

// GetHotspots proxies clustered satellite hotspots for the map view.
// Responses are cached; FIRMS quotas are tight.
// @Summary Clustered satellite hotspots
// @Description Returns clustered FIRMS hotspots for a bounding box.
// @Tags hotspots
// @Produce json
// @Param west query number false "West longitude"
// @Param south query number false "South latitude"
// @Param east query number false "East longitude"
// @Param north query number false "North latitude"
// @Param days query int false "Days back (1-10)"
// @Param min_confidence query number false "Confidence floor (0-100)"
// @Success 200 {array} firms.Hotspot
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /api/v1/hotspots [get]
func (h *Handler) GetHotspots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	bounds := defaultHotspotBounds
	if q.Has("west") || q.Has("south") || q.Has("east") || q.Has("north") {
		var err error
		bounds, err = parseBounds(q.Get("west"), q.Get("south"), q.Get("east"), q.Get("north"))
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
	}

	days := 1
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "days must be between 1 and 10")
			return
		}
		days = n
	}

	minConfidence := float64(firms.PublicMinConfidence)
	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "min_confidence must be between 0 and 100")
			return
		}
		minConfidence = f
	}

	cacheKey := fmt.Sprintf("hotspots:%.2f:%.2f:%.2f:%.2f:%d:%.0f",
		bounds.West, bounds.South, bounds.East, bounds.North, days, minConfidence)

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLHotspots, true)
		return
	}

	hotspots, err := h.spots.FetchHotspots(r.Context(), firms.Query{
		Bounds:         bounds,
		DaysBack:       days,
		MinConfidence:  minConfidence,
		ClusterRadiusM: firms.DefaultClusterRadiusM,
	})
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_FAILED",
			"Hotspot feed is unavailable", err.Error())
		return
	}
	if hotspots == nil {
		hotspots = []firms.Hotspot{}
	}

	data, err := json.Marshal(hotspots)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode hotspots")
		return
	}

	etag := h.cache.Set(cacheKey, data, cache.TTLHotspots)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLHotspots, false)
}

func parseBounds(west, south, east, north string) (geo.BBox, error) {
	parse := func(name, v string, min, max float64) (float64, error) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < min || f > max {
			return 0, fmt.Errorf("%s must be a number between %g and %g", name, min, max)
		}
		return f, nil
	}

	var b geo.BBox
	var err error
	if b.West, err = parse("west", west, -180, 180); err != nil {
		return b, err
	}
	if b.South, err = parse("south", south, -90, 90); err != nil {
		return b, err
	}
	if b.East, err = parse("east", east, -180, 180); err != nil {
		return b, err
	}
	if b.North, err = parse("north", north, -90, 90); err != nil {
		return b, err
	}
	if b.West >= b.East || b.South >= b.North {
		return b, fmt.Errorf("bounding box is empty: west < east and south < north required")
	}
	return b, nil
}
