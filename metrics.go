package vexdb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects operation counters and search latencies. All fields are
// registered against a prometheus.Registerer by NewMetrics; a nil *Metrics
// disables collection.
type Metrics struct {
	inserts       prometheus.Counter
	removes       prometheus.Counter
	searches      *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
	liveVectors   prometheus.Gauge
}

// NewMetrics creates and registers the collectors. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vexdb",
			Name:      "inserts_total",
			Help:      "Total number of vectors inserted.",
		}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vexdb",
			Name:      "removes_total",
			Help:      "Total number of vectors removed.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vexdb",
			Name:      "searches_total",
			Help:      "Total number of searches by strategy.",
		}, []string{"strategy"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vexdb",
			Name:      "search_duration_seconds",
			Help:      "Search latency by strategy.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 2, 16),
		}, []string{"strategy"}),
		liveVectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vexdb",
			Name:      "live_vectors",
			Help:      "Current number of live vectors.",
		}),
	}

	reg.MustRegister(m.inserts, m.removes, m.searches, m.searchLatency, m.liveVectors)

	return m
}

func (m *Metrics) observeInsert() {
	if m == nil {
		return
	}
	m.inserts.Inc()
	m.liveVectors.Inc()
}

func (m *Metrics) observeRemove() {
	if m == nil {
		return
	}
	m.removes.Inc()
	m.liveVectors.Dec()
}

func (m *Metrics) observeSearch(strategy string, start time.Time) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(strategy).Inc()
	m.searchLatency.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
