package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/period"
)

const (
	// DefaultGrace is added to the natural period end when computing TTLs.
	DefaultGrace = 24 * time.Hour

	// DefaultMinTTL is the lowest TTL ever written.
	DefaultMinTTL = 60 * time.Second

	keyPrefix = "budget"
)

// Metrics receives cache outcomes. A nil Metrics is ignored.
type Metrics interface {
	RecordCacheResult(op, result string)
}

// BudgetCache stores per-period budget aggregates in a kv.Store.
type BudgetCache struct {
	store   kv.Store
	grace   time.Duration
	minTTL  time.Duration
	now     func() time.Time
	metrics Metrics
	logger  *slog.Logger
}

// Option configures a BudgetCache.
type Option func(*BudgetCache)

// WithGrace sets the buffer added after the natural period end.
func WithGrace(d time.Duration) Option {
	return func(c *BudgetCache) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithMinTTL sets the TTL floor.
func WithMinTTL(d time.Duration) Option {
	return func(c *BudgetCache) {
		if d > 0 {
			c.minTTL = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *BudgetCache) { c.now = now }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *BudgetCache) { c.metrics = m }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *BudgetCache) { c.logger = l }
}

// New creates a BudgetCache over store.
func New(store kv.Store, opts ...Option) *BudgetCache {
	c := &BudgetCache{
		store:  store,
		grace:  DefaultGrace,
		minTTL: DefaultMinTTL,
		now:    time.Now,
		logger: slog.Default().With("component", "budget-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key for a user's period.
func Key(userID string, cycle period.Cycle, start time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, userID, cycle.Normalize(), period.Key(start))
}

// CyclePattern matches every period of a user's cycle.
func CyclePattern(userID string, cycle period.Cycle) string {
	return fmt.Sprintf("%s:%s:%s:*", keyPrefix, userID, cycle.Normalize())
}

// UserPattern matches every entry of a user.
func UserPattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, userID)
}

// TTL returns how long an entry for the period starting at start should
// live when written at now.
func (c *BudgetCache) TTL(cycle period.Cycle, start, now time.Time) time.Duration {
	ttl := period.NaturalEnd(cycle, start).Sub(now) + c.grace
	if ttl < c.minTTL {
		return c.minTTL
	}
	return ttl
}

// Get returns the entry for the user's current period. The second result is
// false on a miss, an expired entry, a store error or a malformed entry.
func (c *BudgetCache) Get(ctx context.Context, userID string, cycle period.Cycle) (Entry, bool) {
	cycle = cycle.Normalize()
	key := Key(userID, cycle, period.Start(cycle, c.now()))

	entry, err := c.load(ctx, key)
	switch {
	case err == nil:
		c.record("get", "hit")
		return entry, true
	case errors.Is(err, kv.ErrNotFound):
		c.record("get", "miss")
	case errors.Is(err, ErrMalformedEntry):
		c.record("get", "corrupt")
		c.logger.Warn("corrupt budget cache entry, invalidating", "key", key, "error", err)
		c.drop(ctx, key)
	default:
		c.record("get", "error")
		c.logger.Warn("budget cache read failed", "key", key, "error", err)
	}
	return Entry{}, false
}

// Set stores entry for the user's current period.
func (c *BudgetCache) Set(ctx context.Context, userID string, cycle period.Cycle, entry Entry) error {
	cycle = cycle.Normalize()
	now := c.now()
	start := period.Start(cycle, now)
	key := Key(userID, cycle, start)

	entry.ResetCycle = cycle
	if entry.StartDate.IsZero() {
		entry.StartDate = start
	}
	if entry.EndDate.IsZero() {
		entry.EndDate = now
	}

	b, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("encode budget entry: %w", err)
	}
	if err := c.store.Set(ctx, key, b, c.TTL(cycle, start, now)); err != nil {
		c.record("set", "error")
		return fmt.Errorf("set %s: %w", key, err)
	}
	c.record("set", "ok")
	return nil
}

// IncrementalUpdate adds delta to the current period's total and increments
// its count. It returns false when no valid entry exists, in which case the
// caller must recompute the period from the ledger.
func (c *BudgetCache) IncrementalUpdate(ctx context.Context, userID string, cycle period.Cycle, delta float64) (Entry, bool) {
	cycle = cycle.Normalize()
	now := c.now()
	start := period.Start(cycle, now)
	key := Key(userID, cycle, start)

	entry, err := c.load(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, kv.ErrNotFound):
		c.record("increment", "miss")
		return Entry{}, false
	case errors.Is(err, ErrMalformedEntry):
		c.record("increment", "corrupt")
		c.logger.Warn("corrupt budget cache entry, invalidating", "key", key, "error", err)
		c.drop(ctx, key)
		return Entry{}, false
	default:
		c.record("increment", "error")
		c.logger.Warn("budget cache read failed", "key", key, "error", err)
		return Entry{}, false
	}

	entry.Total = RoundAmount(decimal.NewFromFloat(entry.Total).Add(decimal.NewFromFloat(delta)))
	entry.Count++
	entry.EndDate = now
	entry.ResetCycle = cycle

	b, err := encodeEntry(entry)
	if err != nil {
		c.record("increment", "error")
		return Entry{}, false
	}
	if err := c.store.Set(ctx, key, b, c.TTL(cycle, start, now)); err != nil {
		// The caller recomputes; a stale entry must not outlive the failed write.
		c.record("increment", "error")
		c.logger.Warn("budget cache write failed", "key", key, "error", err)
		c.drop(ctx, key)
		return Entry{}, false
	}

	c.record("increment", "hit")
	return entry, true
}

// Invalidate removes every cached period of the user's cycle.
func (c *BudgetCache) Invalidate(ctx context.Context, userID string, cycle period.Cycle) error {
	n, err := c.store.DeletePattern(ctx, CyclePattern(userID, cycle))
	if err != nil {
		return fmt.Errorf("invalidate budget cache: %w", err)
	}
	c.record("invalidate", "ok")
	c.logger.Debug("budget cache invalidated", "user_id", userID, "reset_cycle", cycle, "deleted", n)
	return nil
}

// InvalidateUser removes every cached period of the user across cycles.
func (c *BudgetCache) InvalidateUser(ctx context.Context, userID string) error {
	if _, err := c.store.DeletePattern(ctx, UserPattern(userID)); err != nil {
		return fmt.Errorf("invalidate budget cache: %w", err)
	}
	c.record("invalidate", "ok")
	return nil
}

// Clear deletes every key matching pattern. An empty pattern clears all
// budget entries.
func (c *BudgetCache) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = keyPrefix + ":*"
	}
	return c.store.DeletePattern(ctx, pattern)
}

// RoundAmount rounds d to 2 decimal places, half away from zero.
func RoundAmount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func (c *BudgetCache) load(ctx context.Context, key string) (Entry, error) {
	b, err := c.store.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(b)
}

func (c *BudgetCache) drop(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("budget cache delete failed", "key", key, "error", err)
	}
}

func (c *BudgetCache) record(op, result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheResult(op, result)
	}
}
