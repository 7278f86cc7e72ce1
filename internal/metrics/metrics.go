// Package metrics holds the Prometheus collectors of the allocation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fincore"

// Distribution outcomes.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	distributions       *prometheus.CounterVec
	distributedCents    prometheus.Counter
	distributionSeconds prometheus.Histogram
	simulations         *prometheus.CounterVec
	summaryCache        *prometheus.CounterVec
	ledgerDrifts        prometheus.Gauge
	mirroredPayments    prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributions_total",
			Help:      "Payment distributions by outcome.",
		}, []string{"result"}),
		distributedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributed_cents_total",
			Help:      "Minor units credited to funds by committed distributions.",
		}),
		distributionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distribution_duration_seconds",
			Help:      "Wall time of a distribution, including the ledger transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Projection runs by scenario label.",
		}, []string{"scenario"}),
		summaryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_cache_requests_total",
			Help:      "Summary cache lookups by result.",
		}, []string{"result"}),
		ledgerDrifts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drifted_funds",
			Help:      "Funds whose balance disagreed with the ledger at the last reconciliation.",
		}),
		mirroredPayments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirrored_payments_total",
			Help:      "Distributions copied to the external ledger sheet.",
		}),
	}
	reg.MustRegister(
		m.distributions,
		m.distributedCents,
		m.distributionSeconds,
		m.simulations,
		m.summaryCache,
		m.ledgerDrifts,
		m.mirroredPayments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDistribution(result string, cents int64, took time.Duration) {
	if m == nil {
		return
	}
	m.distributions.WithLabelValues(result).Inc()
	m.distributionSeconds.Observe(took.Seconds())
	if result == ResultOK && cents > 0 {
		m.distributedCents.Add(float64(cents))
	}
}

func (m *Metrics) ObserveSimulation(scenario string) {
	if m == nil {
		return
	}
	if scenario == "" {
		scenario = "unlabelled"
	}
	m.simulations.WithLabelValues(scenario).Inc()
}

func (m *Metrics) SummaryCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.summaryCache.WithLabelValues("hit").Inc()
		return
	}
	m.summaryCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) SetLedgerDrifts(n int) {
	if m == nil {
		return
	}
	m.ledgerDrifts.Set(float64(n))
}

func (m *Metrics) PaymentMirrored() {
	if m == nil {
		return
	}
	m.mirroredPayments.Inc()
}
