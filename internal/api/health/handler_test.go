package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/workers"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

type staticWorkers []workers.WorkerHealth

func (s staticWorkers) Health() []workers.WorkerHealth { return s }

type staticOutages []string

func (s staticOutages) Down() []string { return s }

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.ErrUnavailable }

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckerFunc
		outages  []string
		handler  func(*Handler) http.HandlerFunc
		wantCode int
		wantStat string
	}{
		{"ready", map[string]CheckerFunc{"redis": ok, "clickhouse": ok}, nil, func(h *Handler) http.HandlerFunc { return h.HandleReadiness }, http.StatusOK, "healthy"},
		{"not ready", map[string]CheckerFunc{"redis": ok, "postgres": down}, nil, func(h *Handler) http.HandlerFunc { return h.HandleReadiness }, http.StatusServiceUnavailable, "unhealthy"},
		{"no backends", nil, nil, func(h *Handler) http.HandlerFunc { return h.HandleReadiness }, http.StatusOK, "healthy"},
		{"degraded by outage", map[string]CheckerFunc{"redis": ok}, []string{"bcio/tickers"}, func(h *Handler) http.HandlerFunc { return h.HandleHealth }, http.StatusOK, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger.Nop(), "exconnect", "test").
				WithWorkers(staticWorkers{{Name: "ticker_collector", RunCount: 3, AvgDuration: time.Second}}).
				WithOutages(staticOutages(tt.outages))
			for name, c := range tt.checks {
				h.AddCheck(name, c)
			}

			rec := httptest.NewRecorder()
			tt.handler(h)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStat, body.Status)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}

func TestHandleHealthIncludesWorkers(t *testing.T) {
	h := New(logger.Nop(), "exconnect", "test").
		WithWorkers(staticWorkers{{Name: "trades_collector", ErrorCount: 1, LastError: "timeout"}})

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Workers, 1)
	assert.Equal(t, "timeout", body.Workers[0].LastError)
}

func TestAddCheckIgnoresNil(t *testing.T) {
	h := New(logger.Nop(), "exconnect", "test").AddCheck("redis", nil)
	assert.Empty(t, h.checks)
}

func TestHandleHealthDegradedByStaleWorker(t *testing.T) {
	h := New(logger.Nop(), "exconnect", "test").
		WithWorkers(staticWorkers{{
			Name:        "ticker_collector",
			Enabled:     true,
			Interval:    time.Second,
			RunCount:    4,
			LastSuccess: time.Now().Add(-time.Minute),
		}})

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}
