package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/pool"
)

// Task is a read-only snapshot of a scheduled task, as returned by List.
type Task struct {
	ID       string
	NextRun  time.Time
	Interval time.Duration // zero for one-time and cron tasks
	Cron     string        // empty unless scheduled with ScheduleCron
	Created  time.Time
}

// Scheduler dispatches tasks into a worker pool at scheduled times.
type Scheduler interface {
	// Schedule registers a one-time task to run at runAt.
	Schedule(id string, task pool.Task, runAt time.Time) error

	// ScheduleAfter registers a one-time task to run after delay.
	ScheduleAfter(id string, task pool.Task, delay time.Duration) error

	// ScheduleRepeating registers a task to run every interval.
	ScheduleRepeating(id string, task pool.Task, interval time.Duration) error

	// ScheduleCron registers a task using a standard cron expression
	// ("*/5 * * * *", "@hourly", ...).
	ScheduleCron(id string, cronExpr string, task pool.Task) error

	// Cancel removes a scheduled task. Returns false if id is unknown.
	Cancel(id string) bool

	// List returns snapshots of all registered tasks.
	List() []Task

	// Start begins the dispatch loop.
	Start() error

	// Stop halts dispatching and, if the scheduler owns its pool, shuts the
	// pool down. The returned channel closes when teardown is complete.
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Pool receives dispatched tasks. If nil, the scheduler creates and
	// owns a pool with WorkerCount workers.
	Pool pool.Pool

	// WorkerCount sizes the owned pool when Pool is nil. Default 4.
	WorkerCount int

	// TickInterval is how often due tasks are checked. Default 50ms.
	TickInterval time.Duration

	// Location is the timezone for cron evaluation. Default time.Local.
	Location *time.Location

	// MaxTasks caps the number of registered tasks. Default 10000.
	MaxTasks int

	// OnError is called when a dispatched task fails or cannot be submitted.
	OnError func(id string, err error)

	// Metrics, when non-nil, receives scheduler gauges and counters.
	Metrics *metrics.Registry

	// Name labels this scheduler in metrics. Default "default".
	Name string
}

type scheduledTask struct {
	id           string
	task         pool.Task
	nextRun      time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
}

type scheduler struct {
	pool         pool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	onError      func(id string, err error)
	registry     *metrics.Registry
	name         string

	mu       sync.RWMutex
	tasks    map[string]*scheduledTask
	running  bool
	stopping bool

	loopWg   sync.WaitGroup
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler with default configuration and its own 4-worker pool.
func New() Scheduler {
	s, err := NewWithConfig(Config{})
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (Scheduler, error) {
	p := cfg.Pool
	ownPool := false
	if p == nil {
		workers := cfg.WorkerCount
		if workers == 0 {
			workers = 4
		}
		if err := validation.ValidatePositive("scheduler", "WorkerCount", workers); err != nil {
			return nil, err
		}
		var err error
		p, err = pool.NewWithConfig(pool.Config{WorkerCount: workers})
		if err != nil {
			return nil, err
		}
		ownPool = true
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}

	return &scheduler{
		pool:         p,
		ownPool:      ownPool,
		location:     loc,
		tickInterval: tick,
		maxTasks:     maxTasks,
		onError:      cfg.OnError,
		registry:     cfg.Metrics,
		name:         name,
		tasks:        make(map[string]*scheduledTask),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}, nil
}

func (s *scheduler) Schedule(id string, task pool.Task, runAt time.Time) error {
	return s.add(&scheduledTask{
		id:      id,
		task:    task,
		nextRun: runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, task pool.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task pool.Task, interval time.Duration) error {
	if interval <= 0 {
		return tferrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}
	return s.add(&scheduledTask{
		id:       id,
		task:     task,
		nextRun:  time.Now().Add(interval),
		interval: interval,
		created:  time.Now(),
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task pool.Task) error {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return s.add(&scheduledTask{
		id:           id,
		task:         task,
		nextRun:      schedule.Next(time.Now().In(s.location)),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
		created:      time.Now(),
	})
}

func (s *scheduler) add(st *scheduledTask) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", st.id); err != nil {
		return err
	}
	if st.task == nil {
		return tferrors.ErrNilTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return tferrors.ErrPoolClosed
	}
	if _, exists := s.tasks[st.id]; exists {
		return fmt.Errorf("task %q already scheduled", st.id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("task limit reached (%d): %w", s.maxTasks, tferrors.ErrQueueFull)
	}

	s.tasks[st.id] = st
	s.updateTaskGauge(len(s.tasks))
	return nil
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return false
	}
	delete(s.tasks, id)
	s.updateTaskGauge(len(s.tasks))
	return true
}

func (s *scheduler) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, st := range s.tasks {
		out = append(out, Task{
			ID:       st.id,
			NextRun:  st.nextRun,
			Interval: st.interval,
			Cron:     st.cronExpr,
			Created:  st.created,
		})
	}
	return out
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return fmt.Errorf("scheduler has been stopped")
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.running = true
	s.loopWg.Add(1)
	go s.run()
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.running = false
		s.mu.Unlock()

		close(s.done)

		go func() {
			s.loopWg.Wait()
			if s.ownPool {
				<-s.pool.Shutdown()
			}
			close(s.stopped)
		}()
	})
	return s.stopped
}

// run is the dispatch loop: on every tick, due tasks are submitted to the pool.
func (s *scheduler) run() {
	defer s.loopWg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.tick(now.In(s.location))
		}
	}
}

// tick collects due tasks, advances or removes them, then dispatches.
// Dispatch happens outside the lock so slow submissions (bounded pools with
// the Block policy) do not stall Cancel or List.
func (s *scheduler) tick(now time.Time) {
	s.mu.Lock()
	var due []*scheduledTask
	for _, st := range s.tasks {
		if !st.nextRun.After(now) {
			due = append(due, st)
		}
	}
	for _, st := range due {
		switch {
		case st.cronSchedule != nil:
			st.nextRun = st.cronSchedule.Next(now)
		case st.interval > 0:
			st.nextRun = now.Add(st.interval)
		default:
			delete(s.tasks, st.id)
		}
	}
	s.updateTaskGauge(len(s.tasks))
	s.mu.Unlock()

	for _, st := range due {
		s.dispatch(st)
	}
}

func (s *scheduler) dispatch(st *scheduledTask) {
	fut, err := s.pool.Submit(st.task)
	if err != nil {
		s.reportError(st.id, err)
		return
	}

	if s.registry != nil {
		s.registry.ScheduledRuns.WithLabelValues(s.name).Inc()
	}

	go func() {
		if _, err := fut.Get(); err != nil {
			s.reportError(st.id, err)
		}
	}()
}

func (s *scheduler) reportError(id string, err error) {
	if s.registry != nil {
		s.registry.ScheduledFails.WithLabelValues(s.name).Inc()
	}
	if s.onError != nil {
		s.onError(id, err)
	}
}

func (s *scheduler) updateTaskGauge(n int) {
	if s.registry != nil {
		s.registry.ScheduledTasks.WithLabelValues(s.name).Set(float64(n))
	}
}
