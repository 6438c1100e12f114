package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarinoff/firealert/internal/alerts"
	"github.com/vmarinoff/firealert/internal/cache"
	"github.com/vmarinoff/firealert/internal/config"
	"github.com/vmarinoff/firealert/internal/firms"
	"github.com/vmarinoff/firealert/internal/geo"
)

type fakeStore struct {
	created     *alerts.CreateParams
	deactivated string
}

func (f *fakeStore) Create(_ context.Context, p alerts.CreateParams) (*alerts.Subscription, error) {
	if p.Email == "" && p.Phone == "" {
		return nil, alerts.ErrNoContact
	}
	f.created = &p
	return &alerts.Subscription{
		ID:               1,
		Email:            p.Email,
		Phone:            p.Phone,
		Lat:              p.Lat,
		Lng:              p.Lng,
		RadiusKm:         alerts.ClampRadiusKm(p.RadiusKm),
		NotifyReports:    p.NotifyReports,
		NotifyHotspots:   p.NotifyHotspots,
		Active:           true,
		UnsubscribeToken: "tok-1",
	}, nil
}

func (f *fakeStore) DeactivateByToken(_ context.Context, token string) (bool, error) {
	f.deactivated = token
	return token == "tok-1", nil
}

type fakeFetcher struct {
	hotspots []firms.Hotspot
	err      error
	calls    int
}

func (f *fakeFetcher) FetchHotspots(context.Context, firms.Query) ([]firms.Hotspot, error) {
	f.calls++
	return f.hotspots, f.err
}

type fakeRunner struct {
	summary alerts.Summary
	err     error
	opts    *alerts.Options
}

func (f *fakeRunner) Run(_ context.Context, opts alerts.Options) (alerts.Summary, error) {
	f.opts = &opts
	return f.summary, f.err
}

type handlerFixture struct {
	h      *Handler
	store  *fakeStore
	spots  *fakeFetcher
	runner *fakeRunner
}

func newHandler(cfg *config.Config) *handlerFixture {
	if cfg == nil {
		cfg = &config.Config{CronSecret: "s3cret", LimitPerSource: 3}
	}
	f := &handlerFixture{
		store:  &fakeStore{},
		spots:  &fakeFetcher{},
		runner: &fakeRunner{},
	}
	f.h = New(nil, cache.New(true), cfg, f.store, f.spots, f.runner)
	return f
}

// --------------------------------------------------------------------------
// Notify run
// --------------------------------------------------------------------------

func TestNotifyRun_MissingBearer(t *testing.T) {
	f := newHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run", nil)
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, f.runner.opts, "sweep must not run without auth")
}

func TestNotifyRun_WrongBearer(t *testing.T) {
	f := newHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotifyRun_DisabledWithoutSecret(t *testing.T) {
	f := newHandler(&config.Config{CronSecret: ""})
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotifyRun_Success(t *testing.T) {
	f := newHandler(nil)
	f.runner.summary = alerts.Summary{TotalSubscriptions: 2, TotalDelivered: 1}

	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run?subscription=7&limit=5", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.runner.opts)
	assert.Equal(t, int64(7), f.runner.opts.OnlySubscriptionID)
	assert.Equal(t, 5, f.runner.opts.LimitPerSource)

	var summary alerts.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalDelivered)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestNotifyRun_DefaultLimitFromConfig(t *testing.T) {
	f := newHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.runner.opts.LimitPerSource)
}

func TestNotifyRun_BadSubscriptionParam(t *testing.T) {
	f := newHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run?subscription=abc", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifyRun_SweepFailure(t *testing.T) {
	f := newHandler(nil)
	f.runner.err = errors.New("db gone")

	req := httptest.NewRequest(http.MethodPost, "/internal/notify/run", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()

	f.h.NotifyRun(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

func postSubscription(t *testing.T, f *handlerFixture, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.h.CreateSubscription(rec, req)
	return rec
}

func TestCreateSubscription_Success(t *testing.T) {
	f := newHandler(nil)
	rec := postSubscription(t, f,
		`{"email":"user@example.com","phone":"0888123456","lat":42.7,"lng":23.3,"radiusKm":15}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, f.store.created)
	assert.Equal(t, "359888123456", f.store.created.Phone, "phone is normalized before storage")
	assert.True(t, f.store.created.NotifyReports, "defaults to both sources")
	assert.True(t, f.store.created.NotifyHotspots)

	var sub alerts.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, int64(1), sub.ID)
}

func TestCreateSubscription_OptOutFlags(t *testing.T) {
	f := newHandler(nil)
	rec := postSubscription(t, f,
		`{"email":"user@example.com","lat":42.7,"lng":23.3,"notifyHotspots":false}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, f.store.created.NotifyReports)
	assert.False(t, f.store.created.NotifyHotspots)
}

func TestCreateSubscription_NoContact(t *testing.T) {
	f := newHandler(nil)
	rec := postSubscription(t, f, `{"lat":42.7,"lng":23.3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_CONTACT")
}

func TestCreateSubscription_BadPhone(t *testing.T) {
	f := newHandler(nil)
	rec := postSubscription(t, f, `{"phone":"12345","lat":42.7,"lng":23.3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_PHONE")
}

func TestCreateSubscription_BadCoords(t *testing.T) {
	f := newHandler(nil)
	rec := postSubscription(t, f, `{"email":"user@example.com","lat":99,"lng":23.3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_COORDS")
}

func TestCreateSubscription_UnknownField(t *testing.T) {
	f := newHandler(nil)
	rec := postSubscription(t, f, `{"email":"user@example.com","lat":42.7,"lng":23.3,"bogus":1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnsubscribe(t *testing.T) {
	f := newHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unsubscribe?token=tok-1", nil)
	rec := httptest.NewRecorder()
	f.h.Unsubscribe(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsubscribed")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/unsubscribe?token=nope", nil)
	rec = httptest.NewRecorder()
	f.h.Unsubscribe(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/unsubscribe", nil)
	rec = httptest.NewRecorder()
	f.h.Unsubscribe(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --------------------------------------------------------------------------
// Hotspots
// --------------------------------------------------------------------------

func TestGetHotspots_CacheMissThenHit(t *testing.T) {
	f := newHandler(nil)
	f.spots.hotspots = []firms.Hotspot{{Center: geo.Point{Lat: 42.7, Lng: 23.3}, Count: 2, FRPTotal: 8.5}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots", nil)
	rec := httptest.NewRecorder()
	f.h.GetHotspots(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var hotspots []firms.Hotspot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotspots))
	require.Len(t, hotspots, 1)
	assert.Equal(t, 2, hotspots[0].Count)

	// Second request is served from cache without touching FIRMS.
	rec = httptest.NewRecorder()
	f.h.GetHotspots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/hotspots", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, f.spots.calls)

	// Conditional request matches the ETag.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/hotspots", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	f.h.GetHotspots(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestGetHotspots_CustomBounds(t *testing.T) {
	f := newHandler(nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/hotspots?west=23.0&south=42.0&east=24.0&north=43.0&days=2", nil)
	rec := httptest.NewRecorder()
	f.h.GetHotspots(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetHotspots_BadBounds(t *testing.T) {
	f := newHandler(nil)

	for _, query := range []string{
		"?west=24.0&south=42.0&east=23.0&north=43.0", // west >= east
		"?west=abc&south=42.0&east=24.0&north=43.0",
		"?west=23.0&south=42.0&east=24.0&north=91.0",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots"+query, nil)
		rec := httptest.NewRecorder()
		f.h.GetHotspots(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestGetHotspots_BadDays(t *testing.T) {
	f := newHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots?days=11", nil)
	rec := httptest.NewRecorder()
	f.h.GetHotspots(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHotspots_UpstreamFailure(t *testing.T) {
	f := newHandler(nil)
	f.spots.err = errors.New("firms quota exceeded")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots", nil)
	rec := httptest.NewRecorder()
	f.h.GetHotspots(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_FAILED")
}
