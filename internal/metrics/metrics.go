// Package metrics exposes Prometheus collectors reporting pipeline activity.
// Recording is fire-and-forget and never blocks the pipeline; a nil *Metrics
// is a valid no-op sink.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's collectors.
type Metrics struct {
	stepCost       prometheus.Histogram
	stepConfidence prometheus.Histogram
	stageDuration  *prometheus.HistogramVec
	runOutcomes    *prometheus.CounterVec
	runsActive     prometheus.Gauge
}

// MustNew constructs and registers the collectors with reg. Registration
// errors panic, mirroring promauto semantics: they indicate configuration
// bugs, and tests pass a fresh registry to avoid duplicate names.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		stepCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Subsystem: "pipeline",
			Name:      "step_cost",
			Help:      "Settled cost per pipeline step.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		stepConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Subsystem: "pipeline",
			Name:      "step_confidence",
			Help:      "Ensemble confidence per pipeline step.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cascade",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		runOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "pipeline",
			Name:      "run_outcomes_total",
			Help:      "Terminal run states.",
		}, []string{"state"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cascade",
			Subsystem: "pipeline",
			Name:      "runs_active",
			Help:      "Runs currently executing.",
		}),
	}
	reg.MustRegister(m.stepCost, m.stepConfidence, m.stageDuration, m.runOutcomes, m.runsActive)
	return m
}

// ObserveStep records a settled step's cost and confidence.
func (m *Metrics) ObserveStep(cost, confidence float64) {
	if m == nil {
		return
	}
	m.stepCost.Observe(cost)
	m.stepConfidence.Observe(confidence)
}

// ObserveStage records time spent in one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RunStarted marks a run in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// RunEnded marks a run no longer in flight. Paired with RunStarted regardless
// of how the run left the pipeline.
func (m *Metrics) RunEnded() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}

// ObserveOutcome records a run's terminal (or paused) state.
func (m *Metrics) ObserveOutcome(state string) {
	if m == nil {
		return
	}
	m.runOutcomes.WithLabelValues(state).Inc()
}
