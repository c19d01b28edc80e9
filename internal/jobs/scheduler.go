package jobs

import (
	"context"
	"sync"
	"time"

	"sentinel/internal/utils"
)

// Schedule pairs an operation with how often it runs
type Schedule struct {
	Request  Request
	Interval time.Duration
}

// Scheduler runs jobs in-process on fixed intervals, for deployments without
// an external scheduler calling /v1/jobs.
type Scheduler struct {
	dispatcher *Dispatcher
	schedules  []Schedule
	logger     *utils.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewScheduler creates a scheduler. Schedules with a non-positive interval are skipped.
func NewScheduler(dispatcher *Dispatcher, schedules []Schedule) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		schedules:  schedules,
		logger:     utils.NewLogger("scheduler"),
		stopChan:   make(chan struct{}),
	}
}

// Start launches one ticker loop per schedule
func (s *Scheduler) Start(ctx context.Context) {
	for _, sched := range s.schedules {
		if sched.Interval <= 0 {
			s.logger.Info("Schedule disabled", "operation", sched.Request.Operation)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, sched)
	}
}

// Stop stops all loops and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sched Schedule) {
	defer s.wg.Done()

	s.logger.Info("Starting job schedule", "operation", sched.Request.Operation, "interval", sched.Interval)
	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.run(ctx, sched.Request)
		case <-s.stopChan:
			s.logger.Info("Job schedule stopped", "operation", sched.Request.Operation)
			return
		case <-ctx.Done():
			s.logger.Info("Job schedule stopping due to context cancellation", "operation", sched.Request.Operation)
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, req Request) {
	// Dispatch logs failures; the next tick is the retry.
	_, _ = s.dispatcher.Dispatch(ctx, req)
}
