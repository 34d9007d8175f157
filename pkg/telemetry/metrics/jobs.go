package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/queue"
)

// JobMetrics tracks the alert job queue.
//
// Metrics:
//   - pennywise_jobs_total: finished attempts by job name and outcome
//   - pennywise_job_duration_seconds: handler duration by job name
//   - pennywise_queue_jobs: current jobs by status
type JobMetrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	depth       *prometheus.GaugeVec
}

// NewJobMetrics creates and registers job metrics.
func NewJobMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JobMetrics {
	m := &JobMetrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "jobs_total",
				Help:      "Finished job attempts by name and outcome",
			},
			[]string{"job", "outcome"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "job_duration_seconds",
				Help:      "Job handler duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"job"},
		),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "queue_jobs",
				Help:      "Current number of jobs by status",
			},
			[]string{"status"},
		),
	}
	registry.MustRegister(m.jobsTotal, m.jobDuration, m.depth)
	return m
}

// Record records one finished attempt.
func (m *JobMetrics) Record(name, outcome string, duration time.Duration) {
	m.jobsTotal.WithLabelValues(name, outcome).Inc()
	m.jobDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// UpdateDepth sets the per-status gauges.
func (m *JobMetrics) UpdateDepth(s queue.Stats) {
	m.depth.WithLabelValues(string(queue.StatusWaiting)).Set(float64(s.Waiting))
	m.depth.WithLabelValues(string(queue.StatusActive)).Set(float64(s.Active))
	m.depth.WithLabelValues(string(queue.StatusDelayed)).Set(float64(s.Delayed))
	m.depth.WithLabelValues(string(queue.StatusCompleted)).Set(float64(s.Completed))
	m.depth.WithLabelValues(string(queue.StatusFailed)).Set(float64(s.Failed))
}
