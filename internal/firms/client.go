package firms

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"github.com/vmarinoff/firealert/internal/geo"
)

// Client is a rate-limited HTTP client for the FIRMS area CSV API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sources    []string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a FIRMS client. baseURL may be empty (DefaultBaseURL).
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		sources:    defaultSources,
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
		logger:     logger,
	}
}

// FetchHotspots fetches detections for the query bounds, filters them by
// confidence, drops those duplicating known confirmed fires, and clusters the
// remainder. The returned list is capped at MaxHotspots, strongest (by total
// FRP) first.
func (c *Client) FetchHotspots(ctx context.Context, q Query) ([]Hotspot, error) {
	detections, err := c.FetchDetections(ctx, q.Bounds, q.DaysBack)
	if err != nil {
		return nil, err
	}

	kept := detections[:0]
	for _, d := range detections {
		if d.Confidence < q.MinConfidence {
			continue
		}
		if q.DedupRadiusM > 0 && nearAnyFire(d, q.KnownFires, q.DedupRadiusM) {
			continue
		}
		kept = append(kept, d)
	}

	hotspots := Cluster(kept, q.ClusterRadiusM)
	sort.Slice(hotspots, func(i, j int) bool { return hotspots[i].FRPTotal > hotspots[j].FRPTotal })
	if len(hotspots) > MaxHotspots {
		hotspots = hotspots[:MaxHotspots]
	}

	c.logger.Debug("Hotspots fetched",
		"raw", len(detections), "kept", len(kept), "clusters", len(hotspots))
	return hotspots, nil
}

// FetchDetections fetches raw detections from every configured source for the
// given bounds and recency window.
func (c *Client) FetchDetections(ctx context.Context, bounds geo.BBox, daysBack int) ([]Detection, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("FIRMS API key not configured")
	}
	if daysBack < 1 {
		daysBack = 1
	}
	if daysBack > 10 {
		daysBack = 10
	}

	var all []Detection
	for _, source := range c.sources {
		detections, err := c.fetchSource(ctx, source, bounds, daysBack)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		all = append(all, detections...)
	}
	return all, nil
}

// fetchSource fetches one satellite source's CSV with bounded retries.
func (c *Client) fetchSource(ctx context.Context, source string, bounds geo.BBox, daysBack int) ([]Detection, error) {
	u := fmt.Sprintf("%s/api/area/csv/%s/%s/%.4f,%.4f,%.4f,%.4f/%d",
		c.baseURL, c.apiKey, source,
		bounds.West, bounds.South, bounds.East, bounds.North, daysBack)

	var detections []Detection
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Warn("FIRMS request failed, will retry", "source", source, "error", err)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
				c.logger.Warn("FIRMS returned non-OK status, will retry",
					"source", source, "status_code", resp.StatusCode)
				return fmt.Errorf("FIRMS %s returned %d: %s", source, resp.StatusCode, string(body))
			}

			detections, err = parseAreaCSV(resp.Body, source)
			if err != nil {
				return fmt.Errorf("parse %s CSV: %w", source, err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(15*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying FIRMS fetch after error", "source", source, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return detections, nil
}

// parseAreaCSV parses the FIRMS area CSV response. The API answers an empty
// window with just the header line, or with the literal body "No data found".
func parseAreaCSV(r io.Reader, source string) ([]Detection, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 && strings.HasPrefix(strings.ToLower(header[0]), "no data") {
		return nil, nil
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"latitude", "longitude", "acq_date", "acq_time"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var detections []Detection
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		lat, latErr := strconv.ParseFloat(field(record, col, "latitude"), 64)
		lng, lngErr := strconv.ParseFloat(field(record, col, "longitude"), 64)
		if latErr != nil || lngErr != nil {
			continue
		}

		frp, _ := strconv.ParseFloat(field(record, col, "frp"), 64)

		detections = append(detections, Detection{
			Lat:        lat,
			Lng:        lng,
			FRP:        frp,
			Confidence: parseConfidence(field(record, col, "confidence")),
			Satellite:  field(record, col, "satellite"),
			Source:     source,
			AcquiredAt: parseAcquiredAt(field(record, col, "acq_date"), field(record, col, "acq_time")),
			DayNight:   field(record, col, "daynight"),
		})
	}
	return detections, nil
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseConfidence maps VIIRS letter grades to numeric values and passes MODIS
// percentages through. Unknown values rank as zero so the confidence floor
// discards them.
func parseConfidence(s string) float64 {
	switch strings.ToLower(s) {
	case "l":
		return 25
	case "n":
		return 60
	case "h":
		return 90
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseAcquiredAt combines acq_date ("2024-08-14") and acq_time ("0342",
// zero-padded HHMM) into a UTC timestamp.
func parseAcquiredAt(date, hhmm string) time.Time {
	for len(hhmm) < 4 {
		hhmm = "0" + hhmm
	}
	t, err := time.Parse("2006-01-02 1504", date+" "+hhmm)
	if err != nil {
		t, err = time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

func nearAnyFire(d Detection, fires []geo.Point, radiusM float64) bool {
	p := geo.Point{Lat: d.Lat, Lng: d.Lng}
	for _, f := range fires {
		if geo.HaversineMeters(p, f) <= radiusM {
			return true
		}
	}
	return false
}
