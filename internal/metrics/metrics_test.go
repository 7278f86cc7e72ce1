package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDistribution(t *testing.T) {
	m := New()
	m.ObserveDistribution(ResultOK, 1000_00, 10*time.Millisecond)
	m.ObserveDistribution(ResultNotFound, 0, time.Millisecond)
	m.ObserveDistribution(ResultFailed, 500, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.distributions.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.distributions.WithLabelValues(ResultNotFound)))
	assert.Equal(t, 100000.0, testutil.ToFloat64(m.distributedCents), "only committed amounts count")
}

func TestCountersAndGauges(t *testing.T) {
	m := New()
	m.ObserveSimulation("optimistic")
	m.ObserveSimulation("")
	m.SummaryCache(true)
	m.SummaryCache(false)
	m.SummaryCache(false)
	m.SetLedgerDrifts(3)
	m.PaymentMirrored()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.simulations.WithLabelValues("unlabelled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.summaryCache.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ledgerDrifts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mirroredPayments))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDistribution(ResultOK, 1, time.Second)
	m.ObserveSimulation("x")
	m.SummaryCache(true)
	m.SetLedgerDrifts(1)
	m.PaymentMirrored()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveDistribution(ResultOK, 42, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fincore_distributions_total")
	assert.Contains(t, string(body), "fincore_distributed_cents_total 42")
}
