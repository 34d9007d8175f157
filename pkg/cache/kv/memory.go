package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
// Expired keys are invisible to reads and removed by a background sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
	closed          bool
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStoreConfig configures the memory store.
type MemoryStoreConfig struct {
	// CleanupInterval is how often expired keys are swept.
	// Default: 1 minute
	CleanupInterval time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewMemoryStore creates a memory store with default settings.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(MemoryStoreConfig{})
}

// NewMemoryStoreWithConfig creates a memory store with custom configuration.
func NewMemoryStoreWithConfig(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &MemoryStore{
		entries:         make(map[string]memoryEntry),
		now:             cfg.Clock,
		cleanupInterval: cfg.CleanupInterval,
		done:            make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// DeletePattern implements Store.
func (m *MemoryStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	deleted := 0
	for k := range m.entries {
		if Match(pattern, k) {
			delete(m.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Keys implements Store.
func (m *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	now := m.now()
	var keys []string
	for k, e := range m.entries {
		if !e.expired(now) && Match(pattern, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Incr implements Store.
func (m *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	now := m.now()
	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		e = memoryEntry{value: []byte("0")}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	m.entries[key] = e
	return n, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Sweep implements Sweeper.
func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	deleted := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Size returns the number of stored keys, including expired ones not yet swept.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
	})
	return nil
}

func (m *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = m.Sweep(context.Background())
		case <-m.done:
			return
		}
	}
}
