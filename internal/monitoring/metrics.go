package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the watcher's collectors on a dedicated registry
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal           *prometheus.CounterVec
	FetchAttemptsTotal    *prometheus.CounterVec
	NewListingsTotal      prometheus.Counter
	ReportedListingsTotal prometheus.Counter
	DetectorVerdictsTotal *prometheus.CounterVec
	SeenIDs               prometheus.Gauge
	CycleDuration         prometheus.Histogram
}

// NewMetrics constructs and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatcher_cycles_total",
			Help: "Completed cycles by retrieval outcome.",
		},
		[]string{"outcome"},
	)
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatcher_fetch_attempts_total",
			Help: "Search page fetch attempts by classification.",
		},
		[]string{"outcome"},
	)
	newListings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listingwatcher_new_listings_total",
			Help: "Listing identifiers added to the seen store.",
		},
	)
	reported := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listingwatcher_reported_listings_total",
			Help: "Listings reported to the operator.",
		},
	)
	verdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listingwatcher_detector_verdicts_total",
			Help: "Detector decisions on candidate listings.",
		},
		[]string{"verdict"},
	)
	seen := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "listingwatcher_seen_ids",
			Help: "Identifiers currently held in the seen store.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listingwatcher_cycle_duration_seconds",
			Help:    "Wall time of a single cycle, detail fetches included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(cycles, attempts, newListings, reported, verdicts, seen, duration)

	return &Metrics{
		Registry:              registry,
		CyclesTotal:           cycles,
		FetchAttemptsTotal:    attempts,
		NewListingsTotal:      newListings,
		ReportedListingsTotal: reported,
		DetectorVerdictsTotal: verdicts,
		SeenIDs:               seen,
		CycleDuration:         duration,
	}
}

// ObserveAttempt counts one fetch attempt
func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveVerdict counts one detector decision
func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.DetectorVerdictsTotal.WithLabelValues(verdict).Inc()
}

// ObserveCycle records a finished cycle
func (m *Metrics) ObserveCycle(outcome string, newIDs, reported, seen int, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.NewListingsTotal.Add(float64(newIDs))
	m.ReportedListingsTotal.Add(float64(reported))
	m.SeenIDs.Set(float64(seen))
	m.CycleDuration.Observe(d.Seconds())
}
