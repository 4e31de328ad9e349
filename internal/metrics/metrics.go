package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiplane_poll_ticks_total",
			Help: "Total number of poll ticks by outcome.",
		},
		[]string{"outcome"},
	)

	LockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiplane_lock_contention_total",
			Help: "Total number of poll ticks skipped because another instance held the lease.",
		},
		[]string{"node_id"},
	)

	TaskExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiplane_task_executions_total",
			Help: "Total number of task executions by type and status.",
		},
		[]string{"task_type", "status"},
	)

	TaskExecutionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiplane_task_execution_duration_seconds",
			Help:    "Duration of task executions in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"task_type"},
	)

	StageCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiplane_stage_completions_total",
			Help: "Total number of stage completions by stage.",
		},
		[]string{"stage"},
	)

	RegressionCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiplane_regression_cycles_total",
			Help: "Total number of regression cycle transitions by status.",
		},
		[]string{"status"},
	)

	ReleasesPolling = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiplane_releases_polling",
			Help: "Number of releases with an active poll timer on this instance.",
		},
	)
)

// Register registers all custom shiplane metrics with the default
// Prometheus registry.
func Register() {
	prometheus.MustRegister(
		PollTicksTotal,
		LockContentionTotal,
		TaskExecutionsTotal,
		TaskExecutionDurationSeconds,
		StageCompletionsTotal,
		RegressionCyclesTotal,
		ReleasesPolling,
	)
}
