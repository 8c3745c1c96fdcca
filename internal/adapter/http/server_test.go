package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/weather-cache-service/internal/adapter/http"
	"github.com/couchcryptid/weather-cache-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-cache-service/internal/alerts"
	"github.com/couchcryptid/weather-cache-service/internal/analytics"
	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
	"github.com/couchcryptid/weather-cache-service/internal/health"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
	"github.com/couchcryptid/weather-cache-service/internal/kvstore/kvstoretest"
	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/couchcryptid/weather-cache-service/internal/weather"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fakeSource struct {
	reading domain.Reading
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) CurrentWeather(_ context.Context, loc domain.Location) (domain.Reading, error) {
	f.calls.Add(1)
	r := f.reading
	r.LocationID = loc.ID
	return r, f.err
}

func (f *fakeSource) Forecast(_ context.Context, loc domain.Location, days int) ([]domain.Reading, error) {
	f.calls.Add(1)
	out := make([]domain.Reading, days)
	for i := range out {
		out[i] = f.reading
		out[i].ObservedAt = t0.AddDate(0, 0, i)
	}
	return out, f.err
}

func (f *fakeSource) Historical(_ context.Context, loc domain.Location, start, end time.Time) (domain.HistoricalSummary, error) {
	f.calls.Add(1)
	return domain.HistoricalSummary{LocationID: loc.ID, Start: start, End: end, Days: 3}, f.err
}

type harness struct {
	srv     *httpadapter.Server
	source  *fakeSource
	tracker *analytics.Tracker
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, kv kvstore.Store, readyErr error) *harness {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(t0)
	if kv == nil {
		kv = kvstore.NewMemory(clock)
	}
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "weather.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.UpsertLocation(ctx, domain.Location{ID: "paris", Name: "Paris", Country: "FR", Lat: 48.85, Lon: 2.35}))

	gw := cache.NewGateway(kv, logger, metrics)
	engine := alerts.NewEngine(alerts.Deps{
		Store:     store,
		Locations: store,
		Cache:     gw,
		Clock:     clock,
		Logger:    logger,
		Metrics:   metrics,
	}, alerts.DefaultRetention, time.Second)
	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	tracker := analytics.NewTracker(gw, clock, logger, metrics, time.Second, 64)
	t.Cleanup(tracker.Flush)

	source := &fakeSource{reading: domain.Reading{Temperature: 21, WindSpeed: 10, Condition: "clear", ObservedAt: t0}}
	srv := httpadapter.NewServer(":0", httpadapter.Deps{
		Weather:   weather.NewService(gw, source, store, engine, tracker, logger),
		Alerts:    engine,
		Analytics: tracker,
		Health:    health.NewProbe(kv, "memory", clock, logger, metrics),
		Cache:     gw,
		Ready:     &mockReadiness{err: readyErr},
		Clock:     clock,
	}, logger)
	return &harness{srv: srv, source: source, tracker: tracker}
}

func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(httpadapter.UserHeader, "user-1")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	h := newHarness(t, nil, nil)
	rec := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, newHarness(t, nil, nil).do(t, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		newHarness(t, nil, fmt.Errorf("not ready yet")).do(t, http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil, nil)
	rec := h.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIHealth(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "").Code)
	h.tracker.Flush()

	rec := h.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Status    string         `json:"status"`
		CacheKeys map[string]int `json:"cache_keys"`
	}](t, rec)
	assert.Equal(t, health.StatusUp, body.Status)
	assert.Equal(t, 2, body.CacheKeys[cache.PrefixWeather], "current reading and popularity")
	assert.Zero(t, body.CacheKeys[cache.PrefixHealth], "probe key is removed")
}

func TestAPIHealthStoreDown(t *testing.T) {
	h := newHarness(t, &kvstoretest.Unavailable{}, nil)
	rec := h.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, health.StatusDown, decode[health.Report](t, rec).Status)
}

func TestCurrentWeatherCached(t *testing.T) {
	h := newHarness(t, nil, nil)

	for range 3 {
		rec := h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "")
		require.Equal(t, http.StatusOK, rec.Code)
		r := decode[domain.Reading](t, rec)
		assert.Equal(t, "paris", r.LocationID)
		assert.Equal(t, 21.0, r.Temperature)
	}
	assert.Equal(t, int32(1), h.source.calls.Load())
	h.tracker.Flush()

	rec := h.do(t, http.MethodGet, "/api/v1/weather/popular", "")
	require.Equal(t, http.StatusOK, rec.Code)
	popular := decode[weather.PopularLocations](t, rec)
	assert.True(t, popular.Available)
	assert.Equal(t, []weather.RankedLocation{{LocationID: "paris", Requests: 3}}, popular.Locations)
}

func TestCurrentWeatherStoreDownStillServes(t *testing.T) {
	h := newHarness(t, &kvstoretest.Unavailable{}, nil)
	rec := h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWeatherErrors(t *testing.T) {
	h := newHarness(t, nil, nil)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown location", "/api/v1/weather/current/atlantis", http.StatusNotFound},
		{"forecast days zero", "/api/v1/weather/forecast/paris?days=0", http.StatusBadRequest},
		{"forecast days not a number", "/api/v1/weather/forecast/paris?days=abc", http.StatusBadRequest},
		{"forecast days too many", "/api/v1/weather/forecast/paris?days=30", http.StatusBadRequest},
		{"historical missing start", "/api/v1/weather/historical/paris?end=2026-10-01", http.StatusBadRequest},
		{"historical bad date", "/api/v1/weather/historical/paris?start=10/01/2026&end=2026-10-01", http.StatusBadRequest},
		{"historical reversed", "/api/v1/weather/historical/paris?start=2026-10-05&end=2026-10-01", http.StatusBadRequest},
		{"popular bad limit", "/api/v1/weather/popular?limit=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
	assert.Zero(t, h.source.calls.Load())
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.source.err = errors.New("connection reset")

	rec := h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestForecastAndHistorical(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/weather/forecast/paris?days=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	forecast := decode[struct {
		Days []domain.Reading `json:"days"`
	}](t, rec)
	assert.Len(t, forecast.Days, 3)

	rec = h.do(t, http.MethodGet, "/api/v1/weather/historical/paris?start=2026-10-01&end=2026-10-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[domain.HistoricalSummary](t, rec).Days)
}

func TestClearLocationCache(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "").Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/weather/forecast/paris?days=2", "").Code)

	rec := h.do(t, http.MethodDelete, "/api/v1/weather/cache/paris", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[map[string]int](t, rec)["evicted"])

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "").Code)
	assert.Equal(t, int32(3), h.source.calls.Load())
}

func TestPreferences(t *testing.T) {
	h := newHarness(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/weather/preferences/user-1", "").Code)

	rec := h.do(t, http.MethodPut, "/api/v1/weather/preferences/user-1", `{"units":"metric","default_location":"paris"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/weather/preferences/user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Preferences{Units: "metric", DefaultLocation: "paris"}, decode[domain.Preferences](t, rec))

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/v1/weather/preferences/user-1", `{`).Code)
}

func TestHotReadingRaisesAlert(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.source.reading.Temperature = 46

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "").Code)

	rec := h.do(t, http.MethodGet, "/api/v1/alerts/active?location=paris", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Alerts []domain.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, domain.AlertHighTemperature, list.Alerts[0].Type)
	assert.Equal(t, domain.SeverityCritical, list.Alerts[0].Severity)
	assert.Equal(t, domain.DataSourceAutomatic, list.Alerts[0].DataSource)
}

func TestAlertLifecycle(t *testing.T) {
	h := newHarness(t, nil, nil)
	body := fmt.Sprintf(`{"location_id":"paris","alert_type":"HIGH_WIND","title":"Gale","severity":"high","expires_at":%q}`,
		t0.Add(6*time.Hour).Format(time.RFC3339))

	rec := h.do(t, http.MethodPost, "/api/v1/alerts", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Alert](t, rec)
	assert.Equal(t, domain.StatusActive, created.Status)
	assert.Equal(t, domain.SeverityHigh, created.Severity)

	rec = h.do(t, http.MethodGet, "/api/v1/alerts/severity/HIGH", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = h.do(t, http.MethodGet, "/api/v1/alerts/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = h.do(t, http.MethodPost, "/api/v1/alerts/"+created.ID+"/cancel", `{"reason":"wind dropped"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[domain.Alert](t, rec)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "wind dropped", cancelled.CancelReason)

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/api/v1/alerts/"+created.ID+"/cancel", "").Code)
	assert.Equal(t, http.StatusConflict,
		h.do(t, http.MethodPut, "/api/v1/alerts/"+created.ID+"/status", `{"status":"EXPIRED"}`).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/v1/alerts/missing/cancel", "").Code)
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t, nil, nil)
	rec := h.do(t, http.MethodPost, "/api/v1/alerts", `{"location_id":"paris","alert_type":"THUNDERSTORM","title":"Storm","severity":"MEDIUM"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[domain.Alert](t, rec).ID

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/v1/alerts/"+id+"/status", `{"status":"GONE"}`).Code)

	rec = h.do(t, http.MethodPut, "/api/v1/alerts/"+id+"/status", `{"status":"expired"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusExpired, decode[domain.Alert](t, rec).Status)
}

func TestCreateAlertErrors(t *testing.T) {
	h := newHarness(t, nil, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"location_id":`, http.StatusBadRequest},
		{"missing title", `{"location_id":"paris","alert_type":"HIGH_WIND","severity":"LOW"}`, http.StatusBadRequest},
		{"bad severity", `{"location_id":"paris","alert_type":"HIGH_WIND","title":"x","severity":"EXTREME"}`, http.StatusBadRequest},
		{"unknown location", `{"location_id":"atlantis","alert_type":"HIGH_WIND","title":"x","severity":"LOW"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.do(t, http.MethodPost, "/api/v1/alerts", tt.body).Code)
		})
	}
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/alerts/severity/EXTREME", "").Code)
}

func TestSubscriptions(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/alerts/subscriptions",
		`{"user_id":"user-1","location_id":"paris","alert_types":["HIGH_WIND"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/alerts/subscriptions/user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[alerts.SubscriptionList](t, rec)
	assert.True(t, list.Available)
	require.Len(t, list.Subscriptions, 1)
	assert.Equal(t, "paris", list.Subscriptions[0].LocationID)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/v1/alerts/subscriptions/user-1/paris", "").Code)

	rec = h.do(t, http.MethodGet, "/api/v1/alerts/subscriptions/user-1", "")
	assert.Empty(t, decode[alerts.SubscriptionList](t, rec).Subscriptions)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/alerts/subscriptions", `{"user_id":"user-1"}`).Code)
}

func TestRequestsAreTracked(t *testing.T) {
	h := newHarness(t, nil, nil)
	for range 2 {
		h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "")
	}
	h.do(t, http.MethodGet, "/api/v1/weather/current/atlantis", "")
	h.do(t, http.MethodGet, "/api/v1/nowhere", "")
	h.tracker.Flush()

	rec := h.do(t, http.MethodGet, "/api/v1/analytics/endpoints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ranking := decode[analytics.Ranking](t, rec)
	require.True(t, ranking.Available)
	require.NotEmpty(t, ranking.Entries)
	assert.Equal(t, analytics.RankEntry{Name: "GET /api/v1/weather/current/{location}", Count: 3}, ranking.Entries[0])

	rec = h.do(t, http.MethodGet, "/api/v1/analytics/locations", "")
	assert.Contains(t, decode[analytics.Ranking](t, rec).Entries, analytics.RankEntry{Name: "paris", Count: 2})

	rec = h.do(t, http.MethodGet, "/api/v1/analytics/errors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	errs := decode[analytics.ErrorStats](t, rec)
	assert.Equal(t, int64(2), errs.ByType["not_found"])
	assert.Equal(t, int64(2), errs.Total)

	h.tracker.Flush()
	rec = h.do(t, http.MethodGet, "/api/v1/analytics/users/user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[analytics.Ranking](t, rec).Entries)

	rec = h.do(t, http.MethodGet, "/api/v1/analytics/users/user-1/errors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []analytics.RankEntry{{Name: "not_found", Count: 2}}, decode[analytics.Ranking](t, rec).Entries)

	rec = h.do(t, http.MethodGet, "/api/v1/analytics/daily?date=2026-10-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, decode[analytics.DailyStats](t, rec).Requests, int64(4))
}

func TestAnalyticsDashboardAndReset(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.do(t, http.MethodGet, "/api/v1/weather/current/paris", "")
	h.tracker.Flush()

	rec := h.do(t, http.MethodGet, "/api/v1/analytics/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[analytics.Dashboard](t, rec)
	assert.True(t, dash.Available)
	assert.Equal(t, int64(1), dash.Today.Requests)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/analytics/hourly", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/analytics/daily?date=yesterday", "").Code)

	h.tracker.Flush()
	rec = h.do(t, http.MethodDelete, "/api/v1/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, decode[map[string]int](t, rec)["deleted"])
}

func TestAnalyticsStoreDownDegrades(t *testing.T) {
	h := newHarness(t, &kvstoretest.Unavailable{}, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/analytics/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[analytics.Dashboard](t, rec).Available)

	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodDelete, "/api/v1/analytics", "").Code)
}
