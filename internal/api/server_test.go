package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/driverpool"
	"github.com/beborico/runway-crawler/internal/runway"
)

type fakeSource struct {
	progress runway.Progress
	workers  map[driverpool.WorkerID]driverpool.Status
	snapshot runway.Snapshot
	readErr  error
}

func (f *fakeSource) WorkerStatus() map[driverpool.WorkerID]driverpool.Status {
	return f.workers
}

func (f *fakeSource) Progress(context.Context) (runway.Progress, error) {
	return f.progress, f.readErr
}

func (f *fakeSource) ReadAll(context.Context) (runway.Snapshot, error) {
	return f.snapshot, f.readErr
}

func newTestServer(src *fakeSource) *Server {
	return NewServer(src, src, prometheus.NewRegistry(), zap.NewNop())
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSource{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyzReportsStateOutage(t *testing.T) {
	t.Parallel()

	src := &fakeSource{readErr: errors.New("backend down")}
	server := newTestServer(src)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	id := driverpool.NewWorkerID()
	src := &fakeSource{
		progress: runway.Progress{
			TotalSeasons:         2,
			TotalLooks:           40,
			ExtractedLooks:       10,
			CompletionPercentage: 25,
		},
		workers: map[driverpool.WorkerID]driverpool.Status{
			id: {Unit: "designer https://example.test/shows/chanel", State: "in_progress", UpdatedAt: time.Now()},
		},
	}
	server := newTestServer(src)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Progress runway.Progress   `json:"progress"`
		Workers  []workerStatusDTO `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, 10, payload.Progress.ExtractedLooks)
	require.Len(t, payload.Workers, 1)
	require.Equal(t, string(id), payload.Workers[0].WorkerID)
	require.Equal(t, "in_progress", payload.Workers[0].State)
}

func TestGetSeasons(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		snapshot: runway.Snapshot{
			Seasons: []runway.Season{
				{Name: "Fall Ready-to-Wear", Year: "2024", TotalDesigners: 3, CompletedDesigners: 3, Completed: true},
				{Name: "Spring Ready-to-Wear", Year: "2025", TotalDesigners: 5, CompletedDesigners: 2},
			},
		},
	}
	server := newTestServer(src)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/seasons", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Seasons []seasonDTO `json:"seasons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Seasons, 2)
	require.True(t, payload.Seasons[0].Completed)
	require.Equal(t, "Spring Ready-to-Wear", payload.Seasons[1].Name)
	require.Equal(t, 2, payload.Seasons[1].CompletedDesigners)
}

func TestStatusErrorPath(t *testing.T) {
	t.Parallel()

	src := &fakeSource{readErr: errors.New("backend down")}
	server := newTestServer(src)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSource{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "runway_test_total", Help: "test"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	src := &fakeSource{}
	server := NewServer(src, src, reg, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "runway_test_total 1")
}
