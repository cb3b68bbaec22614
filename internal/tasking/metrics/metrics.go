package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal tracks task outcomes per final status
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodev_tasks_total",
			Help: "Total number of tasks by outcome",
		},
		[]string{"status"},
	)

	// ErrorsTotal tracks classified errors per category and severity
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodev_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"category", "severity"},
	)

	// RecoveriesTotal tracks successful recoveries per strategy
	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodev_recoveries_total",
			Help: "Total number of successful recoveries",
		},
		[]string{"strategy"},
	)

	// RetriesTotal tracks retry attempts across all tasks
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autodev_retries_total",
			Help: "Total number of task retry attempts",
		},
	)

	// StageDuration tracks test pipeline stage duration
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autodev_stage_duration_seconds",
			Help:    "Test pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"stage", "passed"},
	)

	// TasksInProgress tracks tasks currently executing
	TasksInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autodev_tasks_in_progress",
			Help: "Number of tasks currently executing",
		},
	)

	// HealthScore tracks the derived run health score
	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autodev_health_score",
			Help: "Derived run health score between 0 and 1",
		},
	)
)
