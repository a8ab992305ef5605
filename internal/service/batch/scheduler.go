package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger runs one scheduled batch.
type Trigger func(ctx context.Context) error

// Scheduler re-runs a batch on a cron schedule. A tick that arrives while
// the previous batch is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	logger  *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	entry   cron.EntryID
	started bool
}

// NewScheduler creates a new batch scheduler.
func NewScheduler(trigger Trigger, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		trigger: trigger,
		logger:  logger,
	}
}

// Start registers the schedule and starts the cron scheduler. Triggered
// batches run under ctx.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	entryID, err := s.cron.AddFunc(schedule, s.fire)
	if err != nil {
		return err
	}
	s.entry = entryID
	s.cron.Start()
	s.started = true
	s.logger.Info("batch scheduler started", "schedule", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("batch scheduler stopped")
}

// Next returns when the schedule fires next, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := s.trigger(ctx); err != nil {
		s.logger.Warn("scheduled batch failed", "error", err)
	}
}
