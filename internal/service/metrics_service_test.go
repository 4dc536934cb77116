package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/runs/:id", http.StatusOK, 20*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.ObserveDiagnostic(models.ValidationDiagnostic{Kind: models.DiagnosticTicketReassigned})
	metrics.ObserveDiagnostic(models.ValidationDiagnostic{Kind: models.DiagnosticTicketReassigned})
	metrics.ObserveDiagnostic(models.ValidationDiagnostic{Kind: models.DiagnosticEntryShifted})
	metrics.RecordRunStatus(models.RunStatusQueued)
	metrics.RecordRunStatus(models.RunStatusFinished)
	metrics.ObserveRun(time.Second, 10, 25)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, 0.5, snap.CacheHitRatio)
	assert.Equal(t, uint64(2), snap.Diagnostics[models.DiagnosticTicketReassigned])
	assert.Equal(t, uint64(1), snap.Diagnostics[models.DiagnosticEntryShifted])
	assert.Equal(t, uint64(1), snap.Runs[models.RunStatusFinished])
	assert.Equal(t, uint64(10), snap.TicketsGenerated)
	assert.Equal(t, uint64(25), snap.TimeEntriesGenerated)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveDiagnostic(models.ValidationDiagnostic{Kind: models.DiagnosticCapacityUnresolved})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `datagen_validation_diagnostics_total{kind="CAPACITY_UNRESOLVED"} 1`))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveDiagnostic(models.ValidationDiagnostic{})
	metrics.RecordRunStatus(models.RunStatusFailed)
	metrics.ObserveRun(time.Second, 1, 1)
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
