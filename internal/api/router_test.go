package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotradar/depotradar/internal/api"
	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/featureflags"
	"github.com/depotradar/depotradar/internal/geo"
	"github.com/depotradar/depotradar/internal/geocode"
	"github.com/depotradar/depotradar/internal/precache"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// stubProvider serves two Dallas-area warehouses and canned request data.
type stubProvider struct {
	fail bool
}

func (p *stubProvider) FetchWarehouses(_ context.Context) ([]warehouse.Record, error) {
	if p.fail {
		return nil, errors.New("store request failed: status 500")
	}
	return []warehouse.Record{
		{
			ID:          "rec001",
			CreatedTime: "2024-03-01T09:00:00.000Z",
			Fields: map[string]any{
				"WarehouseID":    "WH-001",
				"Warehouse Name": "Dallas Central",
				"City":           "Dallas",
				"State":          "TX",
				"ZIP":            "75212",
				"Status":         "Active",
				"Tier":           "Gold",
				"Latitude":       32.90,
				"Longitude":      -96.90,
			},
		},
		{
			ID:          "rec002",
			CreatedTime: "2024-03-02T09:00:00.000Z",
			Fields: map[string]any{
				"WarehouseID":    "WH-002",
				"Warehouse Name": "Dallas South",
				"City":           "Dallas",
				"State":          "TX",
				"ZIP":            "75216",
				"Status":         "Active",
				"Tier":           "Silver",
				"Latitude":       32.70,
				"Longitude":      -96.80,
			},
		},
	}, nil
}

func (p *stubProvider) FetchRequestCounts(_ context.Context) (map[string]int, error) {
	return map[string]int{"rec001": 30, "rec002": 12}, nil
}

func (p *stubProvider) FetchRequestCountsByLocation(_ context.Context) (map[string]int, error) {
	return map[string]int{"Dallas,TX": 42}, nil
}

func (p *stubProvider) FetchRequestTotals(_ context.Context) (warehouse.RequestTotals, error) {
	now := time.Now()
	return warehouse.RequestTotals{
		Total:   42,
		Created: []time.Time{now.AddDate(0, 0, -2), now.AddDate(0, 0, -1), now},
	}, nil
}

// stubGeocoder resolves one Dallas zip and rejects everything else.
type stubGeocoder struct{}

func (stubGeocoder) Lookup(_ context.Context, zip string) (geo.Coordinate, error) {
	if zip == "75201" {
		return geo.Coordinate{Lat: 32.78, Lng: -96.80}, nil
	}
	return geo.Coordinate{}, geocode.ErrNotFound
}

// buildRouter wires a full service graph around the given provider.
func buildRouter(provider warehouse.Provider, webhookSecret string) http.Handler {
	logger := zerolog.New(io.Discard)

	cacheService := cache.NewService(cache.ServiceConfig{Logger: logger})

	warehouseService := warehouse.NewService(warehouse.ServiceConfig{
		Provider: provider,
		Geocoder: stubGeocoder{},
		Cache:    cacheService,
		Logger:   logger,
	})

	flagService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     logger,
	})

	coverageService := coverage.NewService(coverage.ServiceConfig{
		Source: warehouseService,
		Cache:  cacheService,
		Flags:  flagService,
		Logger: logger,
	})

	orchestrator := precache.NewOrchestrator(precache.OrchestratorConfig{
		Analyzer: coverageService,
		Cache:    cacheService,
		Logger:   logger,
	})

	return api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2024-01-01T00:00:00Z",
		Logger:             logger,
		WarehouseService:   warehouseService,
		CoverageService:    coverageService,
		Precache:           orchestrator,
		FeatureFlagService: flagService,
		WebhookSecret:      webhookSecret,
	})
}

func newTestRouter() http.Handler {
	return buildRouter(&stubProvider{}, "")
}

// envelope mirrors the status/data wrapper used on list and report routes.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "success", env.Status)
	return env
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.False(t, health.Time.Time().IsZero())
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_HealthCheck_Alias(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ListWarehouses(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/warehouses", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w.Body.Bytes())

	var warehouses []warehouse.Warehouse
	require.NoError(t, json.Unmarshal(env.Data, &warehouses))
	require.Len(t, warehouses, 2)
	assert.Equal(t, "Dallas Central", warehouses[0].Name)
	assert.Equal(t, 30, warehouses[0].RequestCount)
}

func TestRouter_ListWarehouses_UpstreamFailure(t *testing.T) {
	router := buildRouter(&stubProvider{fail: true}, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/warehouses", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeUpstream, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_NearbyWarehouses(t *testing.T) {
	router := newTestRouter()

	body, _ := json.Marshal(models.NearbyRequest{ZipCode: "75201", RadiusMiles: 50})

	req := httptest.NewRequest(http.MethodPost, "/v1/warehouses/nearby", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w.Body.Bytes())

	var nearby []warehouse.NearbyWarehouse
	require.NoError(t, json.Unmarshal(env.Data, &nearby))
	require.Len(t, nearby, 2)
	// Gold tier ranks before Silver regardless of distance
	assert.Equal(t, "Dallas Central", nearby[0].Name)
	assert.Greater(t, nearby[0].DistanceMiles, 0.0)
}

func TestRouter_NearbyWarehouses_UnknownZip(t *testing.T) {
	router := newTestRouter()

	body, _ := json.Marshal(models.NearbyRequest{ZipCode: "00000"})

	req := httptest.NewRequest(http.MethodPost, "/v1/warehouses/nearby", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "zip_code", problem.Errors[0].Field)
}

func TestRouter_NearbyWarehouses_MissingZip(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/warehouses/nearby", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "zip_code")
}

func TestRouter_CoverageAnalysis(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/coverage/analysis?radius=50", bytes.NewReader([]byte(`{"filters":{}}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w.Body.Bytes())

	var analysis coverage.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.Equal(t, 2, analysis.TotalWarehouses)
	assert.Equal(t, 42, analysis.TotalRequests)
	assert.Equal(t, 50.0, analysis.AnalysisRadius)
	assert.NotEmpty(t, analysis.Locations)
}

func TestRouter_CoverageAnalysis_EmptyBody(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/coverage/analysis", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CoverageAnalysis_BadRadius(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/coverage/analysis?radius=oops", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "radius", problem.Errors[0].Field)
}

func TestRouter_CoverageAnalysisStream(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/coverage/analysis/stream", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	body := w.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, `"type":"data"`)
}

func TestRouter_CoverageInsights(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/coverage/insights", bytes.NewReader([]byte(`{"filters":{"state":"TX"}}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w.Body.Bytes())

	var report coverage.InsightReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.NotEmpty(t, report.Recommendations)
	assert.NotEmpty(t, report.RequestTrends.TrendDirection)
}

func TestRouter_PrecacheRun(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/precache/run", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result models.PrecacheRunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Results, len(precache.Radii))
	assert.Equal(t, precache.StatusSuccess, result.Results["50"])
	assert.NotEmpty(t, result.CompletedAt)
}

func TestRouter_PrecacheInsightsStream(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/precache/insights/stream", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"type":"data"`)
}

func TestRouter_PrecacheLastRun_NeverRan(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/precache/insights/last-run", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
}

func TestRouter_PrecacheLastRun_AfterRun(t *testing.T) {
	router := newTestRouter()

	// Run the insights refresh first
	runReq := httptest.NewRequest(http.MethodPost, "/v1/precache/insights/stream", http.NoBody)
	runReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), runReq)

	req := httptest.NewRequest(http.MethodGet, "/v1/precache/insights/last-run", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var lastRun models.PrecacheLastRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lastRun))
	assert.NotEmpty(t, lastRun.LastPrecacheTimestamp)
}

func TestRouter_CacheStats(t *testing.T) {
	router := newTestRouter()

	// Prime the cache with a warehouse read
	listReq := httptest.NewRequest(http.MethodGet, "/v1/warehouses", http.NoBody)
	router.ServeHTTP(httptest.NewRecorder(), listReq)

	req := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var report warehouse.CacheReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Greater(t, report.Stats.Total, 0)
	assert.Greater(t, report.Stats.Namespaces[warehouse.NamespaceWarehouses], 0)
	// A freshly primed cache is healthy, so no recommendations
	assert.Empty(t, report.Recommendations)
}

func TestRouter_CacheInvalidate(t *testing.T) {
	router := newTestRouter()

	// Prime the cache so invalidation removes something
	listReq := httptest.NewRequest(http.MethodGet, "/v1/warehouses", http.NoBody)
	router.ServeHTTP(httptest.NewRecorder(), listReq)

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result models.InvalidateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "Warehouse cache cleared", result.Message)
	assert.Greater(t, result.Removed, 0)
}

func TestRouter_Webhook(t *testing.T) {
	router := newTestRouter()

	body := []byte(`{"base":{"id":"appX1"},"webhook":{"id":"achY2"},"timestamp":"2026-08-01T12:00:00.000Z"}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/airtable", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var ack models.WebhookAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "accepted", ack.Status)
}

func TestRouter_Webhook_InvalidSecret(t *testing.T) {
	router := buildRouter(&stubProvider{}, "hook-secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/airtable", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "wrong")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeUnauthorized, problem.Type)
}

func TestRouter_Webhook_ValidSecret(t *testing.T) {
	router := buildRouter(&stubProvider{}, "hook-secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/airtable", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRouter_ListFeatureFlags(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/feature-flags", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var list featureflags.FlagList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, featureflags.FlagCatalogGapScan, list.Items[0].Key)
	assert.Equal(t, featureflags.FlagInsightsGenerator, list.Items[1].Key)
}

func TestRouter_UpsertFeatureFlags(t *testing.T) {
	router := newTestRouter()

	input := featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagInsightsGenerator, Value: true},
		},
		Reason: "enable generator for rollout",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/feature-flags", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_UpsertFeatureFlags_EmptyUpdates(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/feature-flags", bytes.NewReader([]byte(`{"updates":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_InvalidateFeatureFlagCache(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/feature-flags/invalidate", http.NoBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
