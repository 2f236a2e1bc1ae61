// Package metrics exposes build counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pass results recorded by PassFinished.
const (
	ResultPublished = "published"
	ResultFailed    = "failed"
)

// Metrics collects build instrumentation on its own registry, so several
// instances can coexist in one process (tests, embedded use).
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry      *prometheus.Registry
	stageRuns     *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	passes        *prometheus.CounterVec
	passDuration  prometheus.Histogram
	lastPublish   prometheus.Gauge
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstbuild_stage_executions_total",
				Help: "Number of times a stage transform was executed.",
			},
			[]string{"stage"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstbuild_stage_cache_hits_total",
				Help: "Number of times a stage output was served from the cache.",
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstbuild_stage_failures_total",
				Help: "Number of failed stage executions.",
			},
			[]string{"stage"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "burstbuild_stage_duration_seconds",
				Help:    "Duration of stage executions.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"stage"},
		),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstbuild_build_passes_total",
				Help: "Number of build passes by result.",
			},
			[]string{"result"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "burstbuild_build_duration_seconds",
				Help:    "Duration of complete build passes.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		lastPublish: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "burstbuild_last_publish_timestamp_seconds",
				Help: "Unix time of the last successful publish.",
			},
		),
	}
	m.registry.MustRegister(
		m.stageRuns, m.cacheHits, m.stageFailures, m.stageDuration,
		m.passes, m.passDuration, m.lastPublish,
	)
	return m
}

// Registry returns the registry holding the build collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageExecuted records one run of a stage transform.
func (m *Metrics) StageExecuted(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.WithLabelValues(stage).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageReused records a cache hit.
func (m *Metrics) StageReused(stage string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(stage).Inc()
}

// StageFailed records a failed stage.
func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

// PassFinished records a completed pass with one of the Result constants.
func (m *Metrics) PassFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(result).Inc()
	m.passDuration.Observe(d.Seconds())
	if result == ResultPublished {
		m.lastPublish.SetToCurrentTime()
	}
}
