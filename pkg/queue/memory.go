package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue in process memory.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	seq    map[string]int64
	next   int64
	now    func() time.Time
	closed bool
}

// NewMemoryQueue creates an empty memory queue. clock may be nil.
func NewMemoryQueue(clock func() time.Time) *MemoryQueue {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryQueue{
		jobs: make(map[string]*Job),
		seq:  make(map[string]int64),
		now:  clock,
	}
}

// Enqueue implements Queue.
func (m *MemoryQueue) Enqueue(ctx context.Context, name string, payload any, opts Options) (string, error) {
	if name == "" {
		return "", fmt.Errorf("job name cannot be empty")
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return "", err
	}
	opts = opts.withDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	now := m.now()
	j := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   raw,
		Priority:  opts.Priority,
		Attempts:  opts.Attempts,
		Backoff:   opts.Backoff,
		Status:    StatusWaiting,
		RunAt:     now.Add(opts.Delay),
		CreatedAt: now,
	}
	m.jobs[j.ID] = j
	m.next++
	m.seq[j.ID] = m.next
	return j.ID, nil
}

// Dequeue implements Queue.
func (m *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	now := m.now()
	var ready []*Job
	for _, j := range m.jobs {
		if j.Status == StatusWaiting && !j.RunAt.After(now) {
			ready = append(ready, j)
		}
	}
	if len(ready) == 0 {
		return nil, ErrEmpty
	}
	sort.Slice(ready, func(a, b int) bool {
		ja, jb := ready[a], ready[b]
		if ja.Priority != jb.Priority {
			return ja.Priority < jb.Priority
		}
		if !ja.RunAt.Equal(jb.RunAt) {
			return ja.RunAt.Before(jb.RunAt)
		}
		return m.seq[ja.ID] < m.seq[jb.ID]
	})

	j := ready[0]
	j.Status = StatusActive
	j.AttemptsMade++
	cp := *j
	return &cp, nil
}

// Complete implements Queue.
func (m *MemoryQueue) Complete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = StatusCompleted
	j.LastError = ""
	j.FinishedAt = m.now()
	return nil
}

// Fail implements Queue.
func (m *MemoryQueue) Fail(ctx context.Context, id string, cause error, permanent bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if cause != nil {
		j.LastError = cause.Error()
	}
	now := m.now()
	if !permanent && j.AttemptsMade < j.Attempts {
		j.Status = StatusWaiting
		j.RunAt = now.Add(j.Backoff.NextDelay(j.AttemptsMade))
		return true, nil
	}
	j.Status = StatusFailed
	j.FinishedAt = now
	return false, nil
}

// Stats implements Queue.
func (m *MemoryQueue) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var s Stats
	for _, j := range m.jobs {
		status := j.Status
		if status == StatusWaiting && j.RunAt.After(now) {
			status = StatusDelayed
		}
		s.add(status, 1)
	}
	return s, nil
}

// RetryFailed implements Queue.
func (m *MemoryQueue) RetryFailed(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, j := range m.jobs {
		if j.Status == StatusFailed {
			j.Status = StatusWaiting
			j.AttemptsMade = 0
			j.LastError = ""
			j.RunAt = now
			j.FinishedAt = time.Time{}
			n++
		}
	}
	return n, nil
}

// Clean implements Queue.
func (m *MemoryQueue) Clean(ctx context.Context, grace time.Duration, status Status) (int, error) {
	if status != StatusCompleted && status != StatusFailed {
		return 0, fmt.Errorf("can only clean completed or failed jobs, got %q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-grace)
	n := 0
	for id, j := range m.jobs {
		if j.Status == status && !j.FinishedAt.After(cutoff) {
			m.remove(id)
			n++
		}
	}
	return n, nil
}

// Trim implements Queue.
func (m *MemoryQueue) Trim(ctx context.Context, keepCompleted, keepFailed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for status, keep := range map[Status]int{StatusCompleted: keepCompleted, StatusFailed: keepFailed} {
		if keep < 0 {
			continue
		}
		var finished []*Job
		for _, j := range m.jobs {
			if j.Status == status {
				finished = append(finished, j)
			}
		}
		sort.Slice(finished, func(a, b int) bool { return finished[a].FinishedAt.After(finished[b].FinishedAt) })
		for i := keep; i < len(finished); i++ {
			m.remove(finished[i].ID)
		}
	}
	return nil
}

// Get returns a copy of a job by id.
func (m *MemoryQueue) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// Ping implements Queue.
func (m *MemoryQueue) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Queue.
func (m *MemoryQueue) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryQueue) remove(id string) {
	delete(m.jobs, id)
	delete(m.seq, id)
}
