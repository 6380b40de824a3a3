// Package metrics exposes Prometheus metrics for news runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "animetimes"

// Metrics holds the run counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	itemsFetched prometheus.Counter
	itemsFresh   prometheus.Counter
	itemsPosted  prometheus.Counter
	itemsFailed  prometheus.Counter
	ledgerSize   prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

// New registers all metrics on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of finished runs by result.",
		}, []string{"result"}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		itemsFetched: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Candidate items returned by the sources.",
		}),
		itemsFresh: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fresh_total",
			Help:      "Candidate items not found in the ledger.",
		}),
		itemsPosted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_posted_total",
			Help:      "Items delivered to Telegram and recorded.",
		}),
		itemsFailed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Items whose delivery failed.",
		}),
		ledgerSize: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Number of ids in the ledger after the last run.",
		}),
		lastSuccess: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveItems adds the per-run item counts.
func (m *Metrics) ObserveItems(fetched, fresh, posted, failed int) {
	if m == nil {
		return
	}
	m.itemsFetched.Add(float64(fetched))
	m.itemsFresh.Add(float64(fresh))
	m.itemsPosted.Add(float64(posted))
	m.itemsFailed.Add(float64(failed))
}

func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.ledgerSize.Set(float64(n))
}

// ObserveRun records the outcome of one run started at start.
func (m *Metrics) ObserveRun(start time.Time, err error) {
	if m == nil {
		return
	}
	m.runDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.lastSuccess.SetToCurrentTime()
}
