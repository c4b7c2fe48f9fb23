// Package metrics exposes Prometheus instrumentation for optimization runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

const namespace = "swarmopt"

// Run outcome labels.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Metrics holds the collectors for optimization runs.
type Metrics struct {
	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	iterations   *prometheus.CounterVec
	bestFitness  *prometheus.GaugeVec
	runDuration  *prometheus.HistogramVec
	runsActive   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Optimization runs started, by problem.",
		}, []string{"problem"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Optimization runs finished, by problem and status.",
		}, []string{"problem", "status"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "PSO iterations completed, by problem.",
		}, []string{"problem"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Global best fitness of the most recently updated run, by problem.",
		}, []string{"problem"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished optimization runs, by problem.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"problem"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Optimization runs currently executing.",
		}),
	}

	reg.MustRegister(m.runsStarted, m.runsFinished, m.iterations, m.bestFitness, m.runDuration, m.runsActive)
	return m
}

// RunStarted records the start of a run.
func (m *Metrics) RunStarted(problem string) {
	m.runsStarted.WithLabelValues(problem).Inc()
	m.runsActive.Inc()
}

// RunFinished records the end of a run with its outcome.
func (m *Metrics) RunFinished(problem, status string, elapsed time.Duration) {
	m.runsActive.Dec()
	m.runsFinished.WithLabelValues(problem, status).Inc()
	m.runDuration.WithLabelValues(problem).Observe(elapsed.Seconds())
}

// Observer returns a pso.IterationObserver feeding the iteration and best
// fitness collectors for problem.
func (m *Metrics) Observer(problem string) pso.IterationObserver {
	iterations := m.iterations.WithLabelValues(problem)
	best := m.bestFitness.WithLabelValues(problem)
	return func(_ int, globalBest *candidate.Particle, _ pso.Stats) {
		iterations.Inc()
		best.Set(globalBest.Fitness())
	}
}
