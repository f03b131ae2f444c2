// Package metrics holds the Prometheus collectors for knowledge lookups,
// request lifecycle transitions, notifications and sweeps.
//
// All recording methods are safe on a nil *Metrics so components can run
// without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "frontdesk"

// Metrics is a set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	lookups              *prometheus.CounterVec
	matchScore           prometheus.Histogram
	requestsCreated      prometheus.Counter
	requestsClosed       *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	sweepDuration        prometheus.Histogram
	sweepFailures        prometheus.Counter
}

// New creates collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_lookups_total",
			Help:      "Knowledge base lookups by result (hit_exact, hit_fuzzy, miss)",
		}, []string{"result"}),
		matchScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "knowledge_best_score",
			Help:      "Best fuzzy score seen per lookup, accepted or not",
			Buckets:   prometheus.LinearBuckets(0, 0.05, 21),
		}),
		requestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "help_requests_created_total",
			Help:      "Help requests escalated to a supervisor",
		}),
		requestsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "help_requests_closed_total",
			Help:      "Help requests moved to a terminal status",
		}, []string{"status"}),
		notificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered, by kind",
		}, []string{"kind"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timeout_sweep_duration_seconds",
			Help:      "Duration of timeout sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeout_sweep_failures_total",
			Help:      "Timeout sweeps that ended with an error",
		}),
	}
}

// Handler returns the /metrics exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Lookup results.
const (
	LookupHitExact = "hit_exact"
	LookupHitFuzzy = "hit_fuzzy"
	LookupMiss     = "miss"
)

// ObserveLookup records one knowledge base lookup and its best fuzzy score.
// A negative score means no candidate was scored.
func (m *Metrics) ObserveLookup(result string, bestScore float64) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
	if bestScore >= 0 {
		m.matchScore.Observe(bestScore)
	}
}

// RequestCreated counts an escalation.
func (m *Metrics) RequestCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

// RequestClosed counts a terminal transition.
func (m *Metrics) RequestClosed(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.requestsClosed.WithLabelValues(status).Add(float64(n))
}

// NotificationFailed counts a failed notification of the given kind.
func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(kind).Inc()
}

// SweepFinished records a sweep's duration and whether it failed.
func (m *Metrics) SweepFinished(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
	if err != nil {
		m.sweepFailures.Inc()
	}
}
