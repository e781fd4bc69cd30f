// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	WorkflowFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_fills_total",
			Help: "Workflow template fills by workflow and outcome",
		},
		[]string{"workflow_id", "status"},
	)

	WorkflowFillDiagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_fill_diagnostics_total",
			Help: "Non-fatal substitution diagnostics by kind",
		},
		[]string{"kind"},
	)

	BackendSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_submissions_total",
			Help: "Generation requests sent to the job backend",
		},
		[]string{"endpoint", "status"},
	)

	BackendSubmitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_submit_duration_seconds",
			Help:    "Latency of generation submissions including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"endpoint"},
	)
)
