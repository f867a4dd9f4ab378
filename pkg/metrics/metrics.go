// Package metrics provides Prometheus instrumentation for taskflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for taskflow components.
type Registry struct {
	// Worker pool metrics
	TasksSubmitted    *prometheus.CounterVec
	TasksCompleted    *prometheus.CounterVec
	TasksFailed       *prometheus.CounterVec
	TasksRejected     *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
	TaskQueueWait     *prometheus.HistogramVec
	PoolSize          *prometheus.GaugeVec
	PoolActiveWorkers *prometheus.GaugeVec
	PoolQueueDepth    *prometheus.GaugeVec

	// Scheduler metrics
	ScheduledTasks *prometheus.GaugeVec
	ScheduledRuns  *prometheus.CounterVec
	ScheduledFails *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by taskflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks submitted to the pool",
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that returned an error or panicked",
			},
			[]string{"pool_name"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "tasks_rejected_total",
				Help:      "Total number of submissions rejected (queue full or pool closed)",
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "task_queue_wait_seconds",
				Help:      "Time tasks spent queued before a worker dequeued them",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "size",
				Help:      "Configured number of workers",
			},
			[]string{"pool_name"},
		),

		PoolActiveWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "active_workers",
				Help:      "Number of workers currently executing a task",
			},
			[]string{"pool_name"},
		),

		PoolQueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "pool",
				Name:      "queue_depth",
				Help:      "Number of tasks waiting in the queue",
			},
			[]string{"pool_name"},
		),

		ScheduledTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "scheduler",
				Name:      "tasks",
				Help:      "Number of tasks currently registered with the scheduler",
			},
			[]string{"scheduler_name"},
		),

		ScheduledRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "scheduler",
				Name:      "runs_total",
				Help:      "Total number of scheduled task dispatches",
			},
			[]string{"scheduler_name"},
		),

		ScheduledFails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "scheduler",
				Name:      "failures_total",
				Help:      "Total number of scheduled task runs that failed",
			},
			[]string{"scheduler_name"},
		),
	}
}
