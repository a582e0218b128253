// Package metrics provides Prometheus metrics for contest submissions and
// wizard navigation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics records wizard and gateway activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	submissions        *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	validationFailures *prometheus.CounterVec
	transitions        *prometheus.CounterVec
}

// Option applies a configuration option to Metrics.
type Option func(*Metrics)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the submission latency histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Metrics) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry registers the collectors on the given registry instead of a
// fresh private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Metrics) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// New creates the collectors on a private registry.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		namespace: "contestr",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "submissions_total",
		Help:      "Submission phases by outcome",
	}, []string{"phase", "outcome"})

	m.submissionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "submission_duration_seconds",
		Help:      "Wall time of a full submission, persist through token storage",
		Buckets:   m.buckets,
	})

	m.validationFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "validation_failures_total",
		Help:      "Rejected attempts to leave a step",
	}, []string{"step"})

	m.transitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "transitions_total",
		Help:      "Cursor moves between wizard steps",
	}, []string{"from", "to"})

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPhase counts one submission phase result.
func (m *Metrics) RecordPhase(phase, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(phase, outcome).Inc()
}

// ObserveSubmission records the duration of a complete submission attempt.
func (m *Metrics) ObserveSubmission(d time.Duration) {
	if m == nil {
		return
	}
	m.submissionDuration.Observe(d.Seconds())
}

// RecordValidationFailure counts a blocked step exit.
func (m *Metrics) RecordValidationFailure(step string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(step).Inc()
}

// RecordTransition counts a cursor move.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}
