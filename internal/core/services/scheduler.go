package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Schedule yields activation times. A parsed cron expression satisfies it.
type Schedule interface {
	// Next returns the next activation time later than t.
	Next(t time.Time) time.Time
}

// RunResult is the outcome of the most recent scheduled run.
type RunResult struct {
	StartedAt time.Time
	Report    *domain.IndexReport
	Err       error
}

// Scheduler runs incremental indexing on a schedule. Runs never overlap: an
// activation that finds a run still active is skipped.
type Scheduler struct {
	schedule Schedule
	indexer  driving.IndexService

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	last    *RunResult
}

// NewScheduler creates a scheduler.
func NewScheduler(schedule Schedule, indexer driving.IndexService) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		indexer:  indexer,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled. It returns at once if the loop is already running or
// the scheduler has been stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return s.run(ctx, s.stopCh)
}

// Stop shuts down the loop and waits for an active run to finish. Stopping
// before Start is allowed and makes a later Start return immediately. A
// stopped scheduler cannot be restarted.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Last returns the most recent run, or nil before the first one.
func (s *Scheduler) Last() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	for {
		now := time.Now()
		next := s.schedule.Next(now)
		if next.IsZero() {
			return nil // Schedule exhausted
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs one incremental run. It blocks so a slow run delays the
// next activation instead of overlapping it.
func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	result := &RunResult{StartedAt: time.Now()}
	result.Report, result.Err = s.indexer.Index(ctx, driving.IndexOptions{})

	switch {
	case errors.Is(result.Err, domain.ErrIndexInProgress):
		logger.Info("scheduled index skipped: a run is already active")
		return
	case result.Err != nil:
		logger.Error("scheduled index failed: %v", result.Err)
	default:
		logger.Info("scheduled index: %d indexed, %d skipped, %d failed",
			result.Report.Indexed, result.Report.Skipped, len(result.Report.Failed))
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}
