package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/period"
)

// countingLedger counts Find calls on top of a memory store.
type countingLedger struct {
	*ledger.MemoryStore
	finds int
	err   error
}

func (c *countingLedger) Find(ctx context.Context, userID string, start, end time.Time) ([]ledger.Expense, error) {
	c.finds++
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryStore.Find(ctx, userID, start, end)
}

func setup(t *testing.T, now time.Time) (*Aggregator, *countingLedger, *cache.BudgetCache) {
	t.Helper()
	clock := func() time.Time { return now }
	store := kv.NewMemoryStoreWithConfig(kv.MemoryStoreConfig{Clock: clock})
	t.Cleanup(func() { store.Close() })

	c := cache.New(store, cache.WithClock(clock))
	l := &countingLedger{MemoryStore: ledger.NewMemoryStore()}
	return NewAggregator(l, c, clock), l, c
}

func add(t *testing.T, l *countingLedger, user string, amount float64, date time.Time) {
	t.Helper()
	err := l.Insert(context.Background(), &ledger.Expense{
		UserID: user, Title: "t", Amount: amount, Currency: "INR",
		BaseAmount: amount, BaseCurrency: "INR", Category: "Food", Date: date,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func TestCurrentPeriodTotal_MissThenHit(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.Local)
	a, l, _ := setup(t, now)
	ctx := context.Background()

	add(t, l, "u1", 60, time.Date(2024, 3, 2, 8, 0, 0, 0, time.Local))
	add(t, l, "u1", 15.5, time.Date(2024, 3, 13, 9, 0, 0, 0, time.Local))
	add(t, l, "u1", 999, time.Date(2024, 2, 29, 23, 0, 0, 0, time.Local)) // previous month
	add(t, l, "u1", 4.5, time.Date(2024, 3, 13, 11, 0, 0, 0, time.Local)) // later today
	add(t, l, "u1", 999, time.Date(2024, 3, 14, 9, 0, 0, 0, time.Local))  // tomorrow
	add(t, l, "u2", 999, time.Date(2024, 3, 5, 8, 0, 0, 0, time.Local))

	res, err := a.CurrentPeriodTotal(ctx, "u1", period.Monthly)
	if err != nil {
		t.Fatalf("CurrentPeriodTotal failed: %v", err)
	}
	if !res.Seeded {
		t.Error("Expected cold start to be seeded from the ledger")
	}
	if res.Total != 80 || res.Count != 3 {
		t.Errorf("Expected total 80 count 3, got %v %d", res.Total, res.Count)
	}
	if !res.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)) || !res.EndDate.Equal(now) {
		t.Errorf("Unexpected range %v - %v", res.StartDate, res.EndDate)
	}

	res, err = a.CurrentPeriodTotal(ctx, "u1", period.Monthly)
	if err != nil {
		t.Fatalf("CurrentPeriodTotal failed: %v", err)
	}
	if res.Seeded {
		t.Error("Expected second call to be served from cache")
	}
	if res.Total != 80 {
		t.Errorf("Expected cached total 80, got %v", res.Total)
	}
	if l.finds != 1 {
		t.Errorf("Expected exactly 1 ledger query, got %d", l.finds)
	}
}

func TestRecomputeThrough_IncludesFutureDatedExpense(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.Local)
	a, l, c := setup(t, now)
	ctx := context.Background()

	future := time.Date(2024, 3, 20, 9, 0, 0, 0, time.Local)
	add(t, l, "u1", 60, future)

	res, err := a.Recompute(ctx, "u1", period.Monthly)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("Expected plain recompute to stop at end of today, got %v", res.Total)
	}

	res, err = a.RecomputeThrough(ctx, "u1", period.Monthly, future)
	if err != nil {
		t.Fatalf("RecomputeThrough failed: %v", err)
	}
	if res.Total != 60 || res.Count != 1 {
		t.Errorf("Expected total 60 count 1, got %v %d", res.Total, res.Count)
	}
	if !res.EndDate.Equal(now) {
		t.Errorf("Expected reported end %v, got %v", now, res.EndDate)
	}
	if entry, ok := c.Get(ctx, "u1", period.Monthly); !ok || entry.Total != 60 {
		t.Errorf("Expected seeded total 60, got %+v %v", entry, ok)
	}
}

func TestCurrentPeriodTotal_UnknownCycleIsMonthly(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.Local)
	a, _, _ := setup(t, now)

	res, err := a.CurrentPeriodTotal(context.Background(), "u1", period.Cycle("daily"))
	if err != nil {
		t.Fatalf("CurrentPeriodTotal failed: %v", err)
	}
	if res.ResetCycle != period.Monthly {
		t.Errorf("Expected monthly, got %s", res.ResetCycle)
	}
}

func TestCurrentPeriodTotal_LedgerError(t *testing.T) {
	a, l, _ := setup(t, time.Now())
	l.err = errors.New("disk I/O error")

	if _, err := a.CurrentPeriodTotal(context.Background(), "u1", period.Weekly); err == nil {
		t.Error("Expected ledger error to propagate on a cache miss")
	}
}

func TestCurrentPeriodTotal_IncrementAfterSeed(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.Local)
	a, l, c := setup(t, now)
	ctx := context.Background()

	add(t, l, "u1", 60, now.Add(-time.Hour))
	if _, err := a.CurrentPeriodTotal(ctx, "u1", period.Weekly); err != nil {
		t.Fatalf("CurrentPeriodTotal failed: %v", err)
	}

	add(t, l, "u1", 50, now.Add(-time.Minute))
	if _, ok := c.IncrementalUpdate(ctx, "u1", period.Weekly, 50); !ok {
		t.Fatal("Expected incremental update to hit the seeded entry")
	}

	res, err := a.CurrentPeriodTotal(ctx, "u1", period.Weekly)
	if err != nil {
		t.Fatalf("CurrentPeriodTotal failed: %v", err)
	}
	if res.Total != 110 || res.Count != 2 {
		t.Errorf("Expected total 110 count 2, got %v %d", res.Total, res.Count)
	}
	if l.finds != 1 {
		t.Errorf("Expected 1 ledger query, got %d", l.finds)
	}
}

func TestDisplayTotals(t *testing.T) {
	// Wednesday 2024-01-03; the week starts on Monday 2024-01-01.
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.Local)
	a, l, _ := setup(t, now)

	add(t, l, "u1", 10, time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))
	add(t, l, "u1", 20, time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local))
	add(t, l, "u1", 40, time.Date(2023, 12, 31, 9, 0, 0, 0, time.Local)) // Sunday, previous week

	got, err := a.DisplayTotals(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DisplayTotals failed: %v", err)
	}
	if got.Week.Total != 30 || got.Week.Count != 2 {
		t.Errorf("Unexpected week total %+v", got.Week)
	}
	if got.Month.Total != 30 || got.Year.Total != 30 {
		t.Errorf("Unexpected month/year totals %v %v", got.Month.Total, got.Year.Total)
	}
	if got.Week.Period != "This Week" || got.Year.Period != "This Year" {
		t.Errorf("Unexpected labels %q %q", got.Week.Period, got.Year.Period)
	}
}
