package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of work the scheduler runs on every tick.
type Task interface {
	Execute(ctx context.Context) error
}

// Scheduler drives a Task at a fixed interval. When the task fails the
// next run is delayed by the error backoff instead, so a broken
// upstream (exchange outage, advice provider down) is retried gently.
type Scheduler struct {
	interval time.Duration
	backoff  time.Duration
	task     Task
	log      *zap.Logger
	stopCh   chan struct{}
}

func New(interval, backoff time.Duration, task Task, log *zap.Logger) *Scheduler {
	if backoff <= 0 {
		backoff = interval
	}
	return &Scheduler{
		interval: interval,
		backoff:  backoff,
		task:     task,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the task immediately and then on every interval until the
// context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-timer.C:
			wait := s.interval
			if err := s.task.Execute(ctx); err != nil {
				s.log.Error("task failed", zap.Error(err))
				wait = s.backoff
			}
			timer.Reset(wait)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}
