package jobs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Metrics holds Prometheus metrics for optimization jobs.
//
// Metrics:
//   - vocabopt_jobs_started_total - jobs accepted by the tracker
//   - vocabopt_jobs_rejected_total - submissions refused while busy
//   - vocabopt_jobs_finished_total{outcome,algorithm} - finished jobs
//   - vocabopt_job_duration_seconds{algorithm} - wall time per job
//   - vocabopt_job_coverage_percent - coverage of the last successful job
//   - vocabopt_job_running - 1 while a job runs
//   - vocabopt_sheet_publish_failures_total - results sheets that could not be created
type Metrics struct {
	Started         prometheus.Counter
	Rejected        prometheus.Counter
	Finished        *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	Coverage        prometheus.Gauge
	Running         prometheus.Gauge
	PublishFailures prometheus.Counter
}

// NewMetrics registers job metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Name: "vocabopt_jobs_started_total",
			Help: "Total number of optimization jobs started",
		}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "vocabopt_jobs_rejected_total",
			Help: "Total number of submissions rejected because a job was running",
		}),
		Finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vocabopt_jobs_finished_total",
			Help: "Total number of optimization jobs finished",
		}, []string{"outcome", "algorithm"}), // outcome: "completed" or "failed"
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vocabopt_job_duration_seconds",
			Help:    "Duration of optimization jobs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"algorithm"}),
		Coverage: f.NewGauge(prometheus.GaugeOpts{
			Name: "vocabopt_job_coverage_percent",
			Help: "Word coverage of the most recent successful job",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Name: "vocabopt_job_running",
			Help: "1 while an optimization job is running",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vocabopt_sheet_publish_failures_total",
			Help: "Total number of results sheets that could not be created",
		}),
	}
}

// DefaultMetrics registers job metrics with the default registry once.
func DefaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
