package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resolutions  *prometheus.CounterVec
	events       *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	completeness prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaforge_price_resolutions_total",
				Help: "Total nearest-bar price resolutions by outcome",
			},
			[]string{"outcome"},
		),
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaforge_events_processed_total",
				Help: "Total events processed by terminal status",
			},
			[]string{"status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphaforge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		completeness: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alphaforge_event_completeness",
				Help:    "Per-event data quality completeness ratio",
				Buckets: []float64{0, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1},
			},
		),
	}
}

// RecordResolution records one price resolution attempt outcome.
func (r *Recorder) RecordResolution(outcome string) {
	r.resolutions.WithLabelValues(outcome).Inc()
}

// RecordEventProcessed records an event reaching a terminal status.
func (r *Recorder) RecordEventProcessed(status string) {
	r.events.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCompleteness records a per-event completeness observation.
func (r *Recorder) RecordCompleteness(v float64) {
	r.completeness.Observe(v)
}
