package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrEmpty is returned by Dequeue when no job is ready.
	ErrEmpty = errors.New("queue: no job ready")

	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("queue: job not found")

	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("queue: closed")
)

// Job priorities. Lower values are dequeued first.
const (
	PriorityHigh   = 1
	PriorityNormal = 5
	PriorityLow    = 10
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// StatusDelayed is reported for waiting jobs whose run time is in the
	// future. It is never stored.
	StatusDelayed Status = "delayed"
)

// BackoffType selects how retry delays grow.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// Backoff configures retry delays.
type Backoff struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// NextDelay returns the wait before the next attempt after attemptsMade
// attempts have failed.
func (b Backoff) NextDelay(attemptsMade int) time.Duration {
	if b.Delay <= 0 || attemptsMade < 1 {
		return 0
	}
	if b.Type != BackoffExponential {
		return b.Delay
	}

	eb := &backoff.ExponentialBackOff{
		InitialInterval:     b.Delay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         24 * time.Hour,
	}
	eb.Reset()

	var d time.Duration
	for i := 0; i < attemptsMade; i++ {
		d = eb.NextBackOff()
	}
	return d
}

// Options configure a single job.
type Options struct {
	// Priority orders ready jobs; lower runs first.
	// Default: PriorityNormal
	Priority int

	// Attempts is the total number of tries including the first.
	// Default: 1
	Attempts int

	Backoff Backoff

	// Delay postpones the first attempt.
	Delay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Priority == 0 {
		o.Priority = PriorityNormal
	}
	if o.Attempts < 1 {
		o.Attempts = 1
	}
	return o
}

// Job is a unit of work.
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	Priority     int             `json:"priority"`
	Attempts     int             `json:"attempts"`
	AttemptsMade int             `json:"attemptsMade"`
	Backoff      Backoff         `json:"backoff"`
	Status       Status          `json:"status"`
	LastError    string          `json:"lastError,omitempty"`
	RunAt        time.Time       `json:"runAt"`
	CreatedAt    time.Time       `json:"createdAt"`
	FinishedAt   time.Time       `json:"finishedAt,omitempty"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Name, err)
	}
	return nil
}

// Stats counts jobs by state.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Total returns the number of jobs across all states.
func (s Stats) Total() int64 {
	return s.Waiting + s.Active + s.Completed + s.Failed + s.Delayed
}

// Queue is a durable job queue. Implementations must be safe for concurrent use.
type Queue interface {
	// Enqueue adds a job and returns its id.
	Enqueue(ctx context.Context, name string, payload any, opts Options) (string, error)

	// Dequeue claims the next ready job, marking it active and counting the
	// attempt. It returns ErrEmpty when none is ready.
	Dequeue(ctx context.Context) (*Job, error)

	// Complete marks an active job completed.
	Complete(ctx context.Context, id string) error

	// Fail records a failed attempt. The job is rescheduled with backoff
	// unless its attempts are exhausted or permanent is true, in which case
	// it is marked failed. The returned bool reports whether it will retry.
	Fail(ctx context.Context, id string, cause error, permanent bool) (bool, error)

	// Stats counts jobs by state.
	Stats(ctx context.Context) (Stats, error)

	// RetryFailed moves every failed job back to waiting with fresh attempts.
	RetryFailed(ctx context.Context) (int, error)

	// Clean removes finished jobs in status that finished more than grace ago.
	Clean(ctx context.Context, grace time.Duration, status Status) (int, error)

	// Trim keeps only the newest keepCompleted completed and keepFailed
	// failed jobs. A negative value keeps all.
	Trim(ctx context.Context, keepCompleted, keepFailed int) error

	// Ping checks that the queue is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the queue.
	Close() error
}

// Permanent wraps err so a Worker fails the job without retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var perr *backoff.PermanentError
	return errors.As(err, &perr)
}

func encodePayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}
