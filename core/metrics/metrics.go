package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartschedule"

// Metrics records availability engine activity. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry          *prometheus.Registry
	queries           *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	participantFetch  *prometheus.CounterVec
	invalidations     prometheus.Counter
	candidatesEmitted prometheus.Histogram
}

// New builds a recorder on its own registry so tests and multiple servers never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "FindRankedSlots calls by outcome",
		}, []string{"outcome"}),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "End-to-end FindRankedSlots latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Availability cache lookups by tier and result",
		}, []string{"tier", "result"}),
		participantFetch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_fetch_total",
			Help:      "Per-participant calendar fetches by data-quality status",
		}, []string{"status"}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "participant_invalidations_total",
			Help:      "InvalidateParticipant calls",
		}),
		candidatesEmitted: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates",
			Help:      "Candidate slots produced per query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordCacheLookup(tier, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) RecordParticipantFetch(status string) {
	if m == nil {
		return
	}
	m.participantFetch.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordInvalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidatesEmitted.Observe(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
