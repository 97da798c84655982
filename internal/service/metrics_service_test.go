package service

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/pkg/jobs"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodGet, "/timetables", 200, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveGeneration("sync", time.Second, 40, 36, nil)
	m.ObserveGeneration("async", time.Second, 0, 0, errors.New("boom"))
	m.ObserveMove("OK", true)
	m.ObserveMove("ROOM_CONFLICT", false)
	m.ObserveMove("ROOM_CONFLICT", false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.01)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(2), snap.Generations)
	assert.Equal(t, uint64(36), snap.SessionsPlaced)
	assert.Equal(t, uint64(4), snap.SessionsShort)
	assert.Equal(t, map[string]uint64{"OK": 1, "ROOM_CONFLICT": 2}, snap.Moves)
}

func TestMetricsServiceExposesQueueStats(t *testing.T) {
	m := NewMetricsService()
	require.NoError(t, m.RegisterQueue("generation", func() jobs.Stats {
		return jobs.Stats{Pending: 3, Processed: 7}
	}))
	assert.Error(t, m.RegisterQueue("generation", func() jobs.Stats { return jobs.Stats{} }))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `queue_pending_jobs{queue="generation"} 3`)
	assert.Contains(t, string(body), `queue_processed_jobs_total{queue="generation"} 7`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveGeneration("sync", time.Second, 1, 1, nil)
	m.ObserveMove("OK", true)
	assert.NoError(t, m.RegisterQueue("x", nil))
	assert.Empty(t, m.Snapshot().Moves)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
