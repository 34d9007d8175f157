package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	expenses map[string]Expense
	now      func() time.Time
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses: make(map[string]Expense),
		now:      time.Now,
	}
}

// Insert implements Store.
func (m *MemoryStore) Insert(ctx context.Context, e *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = OtherMethod
	}
	now := m.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = *e
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, userID, id string) (*Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.expenses[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Find implements Store.
func (m *MemoryStore) Find(ctx context.Context, userID string, start, end time.Time) ([]Expense, error) {
	out := m.filter(Filter{UserID: userID, Start: start, End: end})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	return int64(len(m.filter(f))), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context, f Filter) (Page, error) {
	f = f.normalized()
	all := m.filter(f)
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })

	lo := (f.Page - 1) * f.Limit
	if lo > len(all) {
		lo = len(all)
	}
	hi := lo + f.Limit
	if hi > len(all) {
		hi = len(all)
	}
	return newPage(all[lo:hi], f, int64(len(all))), nil
}

// Update implements Store.
func (m *MemoryStore) Update(ctx context.Context, e *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.expenses[e.ID]
	if !ok || old.UserID != e.UserID {
		return ErrNotFound
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = m.now()
	m.expenses[e.ID] = *e
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.expenses[id]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) filter(f Filter) []Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Expense
	for _, e := range m.expenses {
		if f.matches(&e) {
			out = append(out, e)
		}
	}
	return out
}
