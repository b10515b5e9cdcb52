package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBreakers []string

func (s stubBreakers) TrippedSymbols() []string { return s }

func TestMetricsRecorders(t *testing.T) {
	RecordThreshold("TESTUSDT", "NORMAL", 0.002, 0.7)
	assert.Equal(t, 0.002, testutil.ToFloat64(costThreshold.WithLabelValues("TESTUSDT")))
	assert.Equal(t, 0.7, testutil.ToFloat64(sizeMultiplier.WithLabelValues("TESTUSDT")))

	before := testutil.ToFloat64(breakerTrips.WithLabelValues("TESTUSDT", "stress"))
	SetBreakerState("TESTUSDT", true, "stress")
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerTripped.WithLabelValues("TESTUSDT")))
	assert.Equal(t, before+1, testutil.ToFloat64(breakerTrips.WithLabelValues("TESTUSDT", "stress")))
	SetBreakerState("TESTUSDT", false, "none")
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerTripped.WithLabelValues("TESTUSDT")))

	RecordOrderDecision("TESTUSDT", false, "concentration")
	assert.Equal(t, 1.0, testutil.ToFloat64(orderDecisions.WithLabelValues("TESTUSDT", "rejected", "concentration")))

	UpdateFeedbackScales("TESTUSDT", 1.2, 1.0)
	assert.Equal(t, 1.2, testutil.ToFloat64(feedbackScale.WithLabelValues("TESTUSDT", "vol")))

	UpdatePortfolio(190, 30, 0.19, 44.4, 0.1)
	assert.Equal(t, 0.19, testutil.ToFloat64(portfolioGauge.WithLabelValues("leverage")))
}

func TestMetricsHandler(t *testing.T) {
	RecordTick("HANDLERUSDT", 1.25)

	rec := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `risk_engine_vol_ratio{symbol="HANDLERUSDT"} 1.25`), body)
	assert.Contains(t, body, "risk_engine_ticks_total")
}

func serveHealth(t *testing.T, h *HealthChecker) (HealthStatus, int) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return status, rec.Code
}

func TestHealthChecker(t *testing.T) {
	stats := engerrors.NewErrorStats(10)
	h := NewHealthChecker(stubBreakers(nil), stats)

	status, code := serveHealth(t, h)
	assert.Equal(t, "degraded", status.Status, "no tick yet")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.RecordTick("BTCUSDT", time.Now())
	status, code = serveHealth(t, h)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BTCUSDT", status.LastSymbol)

	h.SetStaleAfter(time.Millisecond)
	h.RecordTick("BTCUSDT", time.Now().Add(-time.Second))
	status, _ = serveHealth(t, h)
	assert.Equal(t, "degraded", status.Status, "stale data")
}

func TestHealthChecker_TrippedBreakers(t *testing.T) {
	h := NewHealthChecker(stubBreakers{"ETHUSDT"}, nil)
	h.RecordTick("ETHUSDT", time.Now())

	status, code := serveHealth(t, h)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, []string{"ETHUSDT"}, status.TrippedBreakers)
}

func TestHealthChecker_Errors(t *testing.T) {
	stats := engerrors.NewErrorStats(10)
	h := NewHealthChecker(stubBreakers(nil), stats)
	h.RecordTick("BTCUSDT", time.Now())

	stats.RecordError(engerrors.NewInvalidSampleError("volatility", "update", "negative"))
	status, code := serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code, "validation errors are reported but do not fail health")
	assert.Len(t, status.Errors, 1)

	for i := 0; i < unhealthyErrorCount; i++ {
		stats.RecordError(errors.New("boom"))
	}
	status, code = serveHealth(t, h)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, http.StatusInternalServerError, code)
}
