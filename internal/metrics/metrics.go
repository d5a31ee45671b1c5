// Package metrics exposes Prometheus instrumentation for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes recorded by JobFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRetried   = "retried"
	OutcomeRequeued  = "requeued"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	jobsProcessed  *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	activeJobs     *prometheus.GaugeVec
	imagesImported prometheus.Counter
	tracksImported prometheus.Counter
	toolDuration   *prometheus.HistogramVec
	signalsDropped prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		jobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "panotrack_jobs_processed_total",
			Help: "Total number of import jobs processed, by kind and outcome",
		}, []string{"kind", "outcome"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panotrack_job_duration_seconds",
			Help:    "Duration of a single job attempt",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"kind"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "panotrack_job_retries_total",
			Help: "Total number of scheduled job retries, by kind",
		}, []string{"kind"}),
		activeJobs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "panotrack_active_jobs",
			Help: "Number of jobs currently executing, by kind",
		}, []string{"kind"}),
		imagesImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "panotrack_images_imported_total",
			Help: "Total number of frames stored across all image imports",
		}),
		tracksImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "panotrack_tracks_imported_total",
			Help: "Total number of tracks persisted",
		}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panotrack_tool_duration_seconds",
			Help:    "Duration of external tool invocations",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800},
		}, []string{"program", "outcome"}),
		signalsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "panotrack_signals_dropped_total",
			Help: "Bus signals dropped after exhausting delivery attempts",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobStarted marks a job of kind as executing.
func (m *Metrics) JobStarted(kind string) {
	if m == nil {
		return
	}
	m.activeJobs.WithLabelValues(kind).Inc()
}

// JobFinished records one attempt of a job of kind.
func (m *Metrics) JobFinished(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeJobs.WithLabelValues(kind).Dec()
	m.jobsProcessed.WithLabelValues(kind, outcome).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if outcome == OutcomeRetried {
		m.retries.WithLabelValues(kind).Inc()
	}
}

// TrackImported counts a persisted track.
func (m *Metrics) TrackImported() {
	if m == nil {
		return
	}
	m.tracksImported.Inc()
}

// ImagesImported adds n stored frames.
func (m *Metrics) ImagesImported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imagesImported.Add(float64(n))
}

// SignalDropped counts a bus signal given up on.
func (m *Metrics) SignalDropped() {
	if m == nil {
		return
	}
	m.signalsDropped.Inc()
}

// ObserveTool implements cmdrun.Observer.
func (m *Metrics) ObserveTool(program, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolDuration.WithLabelValues(program, outcome).Observe(elapsed.Seconds())
}
