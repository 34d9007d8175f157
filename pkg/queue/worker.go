package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handler processes one job. Returning an error wrapped with Permanent
// fails the job without further attempts.
type Handler func(ctx context.Context, job *Job) error

// Metrics receives job outcomes. A nil Metrics is ignored.
type Metrics interface {
	RecordJob(name, outcome string, duration time.Duration)
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel.
	// Default: 5
	Concurrency int

	// PollInterval is how long an idle worker sleeps before polling again.
	// Default: 500ms
	PollInterval time.Duration

	// JobTimeout bounds a single handler invocation.
	// Default: 30 seconds
	JobTimeout time.Duration

	// KeepCompleted and KeepFailed bound how many finished jobs are kept.
	// Default: 100 and 50
	KeepCompleted int
	KeepFailed    int

	Metrics Metrics
	Logger  *slog.Logger
}

// Worker dequeues jobs and dispatches them to handlers.
type Worker struct {
	queue    Queue
	cfg      WorkerConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]Handler

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	trimMu   sync.Mutex
	finished int
}

// NewWorker creates a Worker over q.
func NewWorker(q Queue, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.KeepCompleted == 0 {
		cfg.KeepCompleted = 100
	}
	if cfg.KeepFailed == 0 {
		cfg.KeepFailed = 50
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "queue-worker")
	}
	return &Worker{
		queue:    q,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobs named name.
func (w *Worker) Handle(name string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("queue worker started", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
}

// Stop cancels the worker goroutines and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		w.logger.Info("queue worker stopped")
	})
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		processed, err := w.ProcessOne(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("queue poll failed", "error", err)
		}
		if processed {
			timer.Reset(0)
		} else {
			timer.Reset(w.cfg.PollInterval)
		}
	}
}

// ProcessOne claims and processes a single ready job. It reports false when
// no job was ready.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	start := time.Now()
	herr := w.run(ctx, job)
	elapsed := time.Since(start)

	// Job state changes must land even when the worker is stopping.
	stateCtx := context.WithoutCancel(ctx)

	if herr == nil {
		if err := w.queue.Complete(stateCtx, job.ID); err != nil {
			return true, fmt.Errorf("complete job %s: %w", job.ID, err)
		}
		w.record(job.Name, "completed", elapsed)
		w.logger.Info("job completed", "job_id", job.ID, "job", job.Name, "attempt", job.AttemptsMade, "duration", elapsed)
		w.maybeTrim(stateCtx)
		return true, nil
	}

	retry, err := w.queue.Fail(stateCtx, job.ID, herr, IsPermanent(herr))
	if err != nil {
		return true, fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	if retry {
		w.record(job.Name, "retried", elapsed)
		w.logger.Warn("job failed, will retry",
			"job_id", job.ID,
			"job", job.Name,
			"attempt", job.AttemptsMade,
			"max_attempts", job.Attempts,
			"retry_in", job.Backoff.NextDelay(job.AttemptsMade),
			"error", herr,
		)
	} else {
		w.record(job.Name, "failed", elapsed)
		w.logger.Error("job failed permanently, retries exhausted",
			"job_id", job.ID,
			"job", job.Name,
			"attempts", job.AttemptsMade,
			"error", herr,
		)
		w.maybeTrim(stateCtx)
	}
	return true, nil
}

func (w *Worker) run(ctx context.Context, job *Job) (err error) {
	w.mu.RLock()
	h, ok := w.handlers[job.Name]
	w.mu.RUnlock()
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for job %q", job.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job handler panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()
	return h(ctx, job)
}

// maybeTrim trims finished jobs every KeepFailed completions.
func (w *Worker) maybeTrim(ctx context.Context) {
	w.trimMu.Lock()
	w.finished++
	due := w.finished%w.cfg.KeepFailed == 0
	w.trimMu.Unlock()

	if !due {
		return
	}
	if err := w.queue.Trim(ctx, w.cfg.KeepCompleted, w.cfg.KeepFailed); err != nil {
		w.logger.Warn("failed to trim finished jobs", "error", err)
	}
}

func (w *Worker) record(name, outcome string, d time.Duration) {
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.RecordJob(name, outcome, d)
	}
}
