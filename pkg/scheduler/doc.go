/*
Package scheduler provides time-based and cron-based task dispatch on top of
the taskflow worker pool.

A scheduler holds a set of registered tasks, each with a next-run time, and a
ticker-driven loop that submits due tasks into a pool.Pool. One-time tasks
are removed after dispatch; repeating and cron tasks are re-armed.

	s, err := scheduler.NewWithConfig(scheduler.Config{
		WorkerCount: 4,
		OnError: func(id string, err error) {
			log.Printf("scheduled task %s failed: %v", id, err)
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	s.ScheduleRepeating("heartbeat", pool.TaskFunc(sendHeartbeat), 30*time.Second)
	s.ScheduleCron("nightly-report", "0 2 * * *", pool.TaskFunc(buildReport))

	if err := s.Start(); err != nil {
		log.Fatal(err)
	}
	defer func() { <-s.Stop() }()

Cron expressions use the standard five-field format plus descriptors such as
"@hourly" and "@daily" (github.com/robfig/cron/v3).

Task results are consumed internally: a scheduled run's error reaches the
OnError callback, not a Future. Use the pool directly when the caller needs
the result value.
*/
package scheduler
