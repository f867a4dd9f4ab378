package pool

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/taskflow/pkg/metrics"
)

// MetricsPool wraps a Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a worker pool with metrics enabled on a dedicated
// Prometheus registry.
func NewWithMetrics(workerCount, queueCapacity int, name string) (Pool, error) {
	registry := prometheus.NewRegistry()
	return NewWithConfigAndMetrics(Config{
		WorkerCount:   workerCount,
		QueueCapacity: queueCapacity,
	}, name, metrics.Config{
		Enabled:  true,
		Registry: registry,
	})
}

// NewWithConfigAndMetrics creates a worker pool with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	basePool, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if !metricsConfig.Enabled {
		return basePool, nil
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	mp := &MetricsPool{
		pool:     basePool,
		name:     name,
		registry: registry,
		enabled:  true,
	}
	mp.registry.PoolSize.WithLabelValues(mp.name).Set(float64(basePool.Size()))
	mp.updateGauges()

	return mp, nil
}

// updateGauges refreshes the current-state gauges.
func (mp *MetricsPool) updateGauges() {
	if !mp.enabled {
		return
	}
	mp.registry.PoolActiveWorkers.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.PoolQueueDepth.WithLabelValues(mp.name).Set(float64(mp.pool.QueueDepth()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) (*Future, error) {
	return mp.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext submits a task, recording submission and queue-wait metrics.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) (*Future, error) {
	if !mp.enabled || task == nil {
		// nil tasks go straight through so the base pool's rejection applies
		fut, err := mp.pool.SubmitWithContext(ctx, task)
		if err != nil && mp.enabled {
			mp.registry.TasksRejected.WithLabelValues(mp.name).Inc()
		}
		return fut, err
	}

	fut, err := mp.pool.SubmitWithContext(ctx, &metricsTask{
		original:   task,
		pool:       mp,
		submitTime: time.Now(),
	})

	if err != nil {
		mp.registry.TasksRejected.WithLabelValues(mp.name).Inc()
	} else {
		mp.registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
	}
	mp.updateGauges()

	return fut, err
}

// metricsTask wraps a Task to collect execution metrics.
type metricsTask struct {
	original   Task
	pool       *MetricsPool
	submitTime time.Time
}

// Execute runs the original task and records metrics.
func (mt *metricsTask) Execute(ctx context.Context) (any, error) {
	start := time.Now()
	mt.pool.registry.TaskQueueWait.WithLabelValues(mt.pool.name).Observe(start.Sub(mt.submitTime).Seconds())

	value, err := mt.original.Execute(ctx)

	mt.pool.registry.TaskDuration.WithLabelValues(mt.pool.name).Observe(time.Since(start).Seconds())
	if err != nil {
		mt.pool.registry.TasksFailed.WithLabelValues(mt.pool.name).Inc()
	} else {
		mt.pool.registry.TasksCompleted.WithLabelValues(mt.pool.name).Inc()
	}
	mt.pool.updateGauges()

	return value, err
}

// Shutdown initiates graceful shutdown of the underlying pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// Size returns the number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueDepth returns the current number of queued tasks.
func (mp *MetricsPool) QueueDepth() int {
	depth := mp.pool.QueueDepth()
	if mp.enabled {
		mp.registry.PoolQueueDepth.WithLabelValues(mp.name).Set(float64(depth))
	}
	return depth
}

// ActiveWorkers returns the number of workers currently executing a task.
func (mp *MetricsPool) ActiveWorkers() int {
	active := mp.pool.ActiveWorkers()
	if mp.enabled {
		mp.registry.PoolActiveWorkers.WithLabelValues(mp.name).Set(float64(active))
	}
	return active
}

// TotalSubmitted returns the total number of tasks accepted by Submit.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks that finished executing.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// TotalFailed returns the total number of tasks that returned an error or panicked.
func (mp *MetricsPool) TotalFailed() int64 {
	return mp.pool.TotalFailed()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	mp.enabled = config.Enabled
	if config.Registry != nil {
		mp.registry = metrics.NewRegistry(config.Registry)
	}
	if mp.enabled {
		mp.updateGauges()
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled
}
