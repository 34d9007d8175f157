package preference

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Preference
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]Preference)}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, userID string) (*Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	p.AlertThresholds = append(Thresholds(nil), p.AlertThresholds...)
	return &p, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, p *Preference) error {
	p.BaseCurrency = strings.ToUpper(p.BaseCurrency)
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if old, ok := m.prefs[p.UserID]; ok {
		p.CreatedAt = old.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	stored := *p
	stored.AlertThresholds = append(Thresholds(nil), p.AlertThresholds...)
	m.prefs[p.UserID] = stored
	return nil
}

// SaveAlertState implements Store.
func (m *MemoryStore) SaveAlertState(ctx context.Context, userID string, state AlertState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prefs[userID]
	if !ok {
		return ErrNotFound
	}
	p.Alert = state
	p.UpdatedAt = time.Now()
	m.prefs[userID] = p
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
