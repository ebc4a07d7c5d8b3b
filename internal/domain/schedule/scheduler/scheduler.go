// Package scheduler drives the due-time side of the schedule: it
// periodically asks the policy to fire assignments whose scheduled
// time has arrived. Firing is idempotent, so overlapping or repeated
// ticks are safe.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DueProcessor fires every due assignment once per invocation
type DueProcessor interface {
	ProcessDueAssignments(ctx context.Context) error
}

// Scheduler polls for due assignments on a fixed interval
type Scheduler struct {
	processor DueProcessor
	interval  time.Duration
	logger    *slog.Logger

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a new due-assignment scheduler
func New(processor DueProcessor, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		processor: processor,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called or ctx is done.
// It returns immediately; the loop runs in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	s.logger.Info("due-assignment scheduler started", "interval", s.interval)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// First pass right away so a restart doesn't delay overdue posts.
		s.process(ctx)

		for {
			select {
			case <-ticker.C:
				s.process(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the polling loop and waits for it to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
	s.logger.Info("due-assignment scheduler stopped")
}

func (s *Scheduler) process(ctx context.Context) {
	s.logger.Debug("processing due assignments")

	if err := s.processor.ProcessDueAssignments(ctx); err != nil {
		s.logger.Error("failed to process due assignments", "error", err)
	}
}
