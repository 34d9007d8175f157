package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/queue"
)

// Cleaner removes finished jobs older than grace.
type Cleaner interface {
	Clean(ctx context.Context, grace time.Duration, status queue.Status) (int, error)
}

// Janitor schedules cache sweeps and queue cleanup.
type Janitor struct {
	cfg     config.JanitorConfig
	sweeper kv.Sweeper
	cleaner Cleaner
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Janitor. Either sweeper or cleaner may be nil, which
// disables the matching task.
func New(cfg config.JanitorConfig, sweeper kv.Sweeper, cleaner Cleaner) *Janitor {
	return &Janitor{
		cfg:     cfg,
		sweeper: sweeper,
		cleaner: cleaner,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "janitor"),
	}
}

// Start registers the configured tasks and starts the scheduler. It stops
// when ctx is cancelled. Starting with nothing to schedule is not an error.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return errors.New("janitor already running")
	}

	scheduled := 0
	if j.sweeper != nil && j.cfg.SweepSchedule != "" {
		if err := j.add(j.cfg.SweepSchedule, func() { j.Sweep(ctx) }); err != nil {
			return err
		}
		scheduled++
	}
	if j.cleaner != nil && j.cfg.QueueCleanSchedule != "" {
		if err := j.add(j.cfg.QueueCleanSchedule, func() { j.CleanQueue(ctx) }); err != nil {
			return err
		}
		scheduled++
	}
	if scheduled == 0 {
		j.logger.Info("no janitor tasks configured")
		return nil
	}

	j.cron.Start()
	j.running = true
	j.logger.Info("janitor started",
		"sweep_schedule", j.cfg.SweepSchedule,
		"queue_clean_schedule", j.cfg.QueueCleanSchedule,
		"queue_clean_grace", j.cfg.QueueCleanGrace,
	)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

func (j *Janitor) add(schedule string, fn func()) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if _, err := j.cron.AddFunc(schedule, fn); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return nil
}

// Sweep purges expired cache keys once.
func (j *Janitor) Sweep(ctx context.Context) int {
	if j.sweeper == nil {
		return 0
	}
	n, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Error("cache sweep failed", "error", err)
		return n
	}
	if n > 0 {
		j.logger.Info("cache sweep completed", "removed", n)
	} else {
		j.logger.Debug("cache sweep completed, nothing expired")
	}
	return n
}

// CleanQueue removes completed and failed jobs older than the grace period
// once.
func (j *Janitor) CleanQueue(ctx context.Context) int {
	if j.cleaner == nil {
		return 0
	}
	removed := 0
	for _, status := range []queue.Status{queue.StatusCompleted, queue.StatusFailed} {
		n, err := j.cleaner.Clean(ctx, j.cfg.QueueCleanGrace, status)
		if err != nil {
			j.logger.Error("queue clean failed", "status", status, "error", err)
			continue
		}
		removed += n
	}
	if removed > 0 {
		j.logger.Info("queue clean completed", "removed", removed)
	}
	return removed
}

// Stop stops the scheduler and waits for running tasks.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
	j.logger.Info("janitor stopped")
}

// IsRunning reports whether the scheduler is running.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun returns the earliest next run across tasks, or nil when stopped.
func (j *Janitor) NextRun() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return nil
	}
	var next *time.Time
	for _, e := range j.cron.Entries() {
		t := e.Next
		if next == nil || t.Before(*next) {
			next = &t
		}
	}
	return next
}
