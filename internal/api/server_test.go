package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid-trading-lab/internal/archive"
	"grid-trading-lab/internal/config"
	"grid-trading-lab/internal/observability"
	"grid-trading-lab/internal/session"
)

type testEnv struct {
	server  *Server
	sim     *session.Simulator
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, withArchive bool) *testEnv {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	metrics := observability.NewMetrics("api_test", prometheus.NewRegistry())
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	sim := session.NewSimulator(session.SimulatorOptions{
		Clock:     func() time.Time { return start },
		Logger:    logger,
		Observers: []session.Observer{metrics},
	})

	opts := Options{Simulator: sim, Config: cfg, Metrics: metrics, Logger: logger}
	if withArchive {
		a, err := archive.New(archive.Options{Stores: archive.MemoryStores(), Logger: logger})
		require.NoError(t, err)
		opts.Archiver = a
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return &testEnv{server: srv, sim: sim, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew_RequiresSimulatorAndConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("health", "200")))
}

func TestServer_Scenarios(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]string](t, rec)
	assert.Contains(t, body["scenarios"], "sideways")
	assert.Contains(t, body["scenarios"], "bull")
}

func TestServer_NoSession(t *testing.T) {
	env := newTestEnv(t, false)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/session"},
		{http.MethodPost, "/api/session/pause"},
		{http.MethodPost, "/api/session/stop"},
		{http.MethodPost, "/api/session/tick"},
		{http.MethodGet, "/api/grids"},
	} {
		rec := env.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, tc.path)
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/session/start", map[string]any{
		"simulation": map[string]any{"market_condition": "volatile", "seed": 7},
		"portfolio":  map[string]any{"base_balance": 5000},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[sessionView](t, rec)
	assert.Equal(t, "running", started.State)
	assert.Equal(t, "volatile", started.MarketCondition)
	assert.Equal(t, 5000.0, started.Portfolio.BaseBalance)

	// a second start while running is rejected
	rec = env.do(t, http.MethodPost, "/api/session/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/grids", map[string]any{"base_amount": 1000, "order_count": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grid := decode[gridView](t, rec)
	assert.Equal(t, "active", grid.Status)
	assert.NotEmpty(t, grid.Orders)
	assert.InDelta(t, 0.8, grid.PriceMin, 1e-9)
	assert.InDelta(t, 1.2, grid.PriceMax, 1e-9)

	for i := 0; i < 20; i++ {
		rec = env.do(t, http.MethodPost, "/api/session/tick", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/session", nil)
	info := decode[sessionView](t, rec)
	assert.Equal(t, 20, info.TickCount)
	assert.Equal(t, 1, info.GridCount)

	rec = env.do(t, http.MethodGet, "/api/price", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	price := decode[map[string]any](t, rec)
	assert.Greater(t, price["price"].(float64), 0.0)

	rec = env.do(t, http.MethodGet, "/api/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	perf := decode[map[string]any](t, rec)
	assert.Equal(t, 5000.0, perf["initial_value"])

	rec = env.do(t, http.MethodGet, "/api/executions?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.LessOrEqual(t, len(decode[[]map[string]any](t, rec)), 2)

	rec = env.do(t, http.MethodGet, "/api/grids/"+grid.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", decode[sessionView](t, rec).State)

	rec = env.do(t, http.MethodPost, "/api/session/tick", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stopped := decode[stopResponse](t, rec)
	assert.Equal(t, started.ID, stopped.SessionID)
	assert.Equal(t, 20, stopped.Ticks)
	assert.True(t, stopped.Archived)
	require.Len(t, stopped.Grids, 1)
	assert.Equal(t, "completed", stopped.Grids[0].Status)

	rec = env.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]sessionRecordView](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, started.ID, records[0].SessionID)
	assert.Equal(t, 5000.0, records[0].InitialEquity)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+started.ID+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Grid Simulation Report"))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ReportsGenerated))

	rec = env.do(t, http.MethodGet, "/api/sessions/"+started.ID+"/report?format=grids", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rec = env.do(t, http.MethodGet, "/api/sessions/"+started.ID+"/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+started.ID+"/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, rec)["Match"])

	rec = env.do(t, http.MethodGet, "/api/sessions/unknown/verify", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/sessions/unknown/report", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GridErrors(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodPost, "/api/session/start", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/grids", map[string]any{"base_amount": 1e9})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/grids", map[string]any{"order_count": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/grids", map[string]any{"bogus": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/grids/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/grids/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/grids", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[gridView](t, rec).ID

	rec = env.do(t, http.MethodDelete, "/api/grids/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Greater(t, body["released"].(float64), 0.0)

	rec = env.do(t, http.MethodGet, "/api/executions?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_InvalidStart(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodPost, "/api/session/start", map[string]any{
		"simulation": map[string]any{"fee_rate": 2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.sim.GetSession())
}

func TestServer_ArchiveDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_RestartArchivesStoppedSession(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/session/start", map[string]any{
		"simulation": map[string]any{"duration_minutes": 2},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[sessionView](t, rec).ID

	// the duration elapses and the session stops itself
	for i := 0; i < 2; i++ {
		env.do(t, http.MethodPost, "/api/session/tick", nil)
	}
	require.Equal(t, "stopped", string(env.sim.GetSession().State()))

	rec = env.do(t, http.MethodPost, "/api/session/start", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/sessions", nil)
	records := decode[[]sessionRecordView](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, first, records[0].SessionID)
}
