// Package budget serves the running total of a user's spend in the current
// budget period, from the cache when possible and from the ledger otherwise.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/period"
)

// Result is the aggregate of one user's current period.
type Result struct {
	Total      float64      `json:"total"`
	Count      int64        `json:"count"`
	StartDate  time.Time    `json:"startDate"`
	EndDate    time.Time    `json:"endDate"`
	ResetCycle period.Cycle `json:"resetCycle"`

	// Seeded is true when the result was recomputed from the ledger.
	Seeded bool `json:"-"`
}

// FromEntry converts a cache entry into a Result.
func FromEntry(e cache.Entry) Result {
	return Result{
		Total:      e.Total,
		Count:      e.Count,
		StartDate:  e.StartDate,
		EndDate:    e.EndDate,
		ResetCycle: e.ResetCycle,
	}
}

// PeriodTotal is the aggregate of a fixed display period.
type PeriodTotal struct {
	Total     float64   `json:"total"`
	Count     int64     `json:"count"`
	Period    string    `json:"period"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// DisplayTotals holds the week, month and year totals shown to a user.
type DisplayTotals struct {
	Week  PeriodTotal `json:"week"`
	Month PeriodTotal `json:"month"`
	Year  PeriodTotal `json:"year"`
}

// Aggregator computes period totals.
type Aggregator struct {
	ledger ledger.Store
	cache  *cache.BudgetCache
	now    func() time.Time
	tracer trace.Tracer
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. now may be nil to use time.Now.
func NewAggregator(store ledger.Store, c *cache.BudgetCache, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		ledger: store,
		cache:  c,
		now:    now,
		tracer: otel.Tracer("pennywise/budget"),
		logger: slog.Default().With("component", "aggregator"),
	}
}

// CurrentPeriodTotal returns the total of the user's current period. A cache
// hit is returned as is; a miss recomputes from the ledger and seeds the cache.
func (a *Aggregator) CurrentPeriodTotal(ctx context.Context, userID string, cycle period.Cycle) (Result, error) {
	cycle = cycle.Normalize()

	ctx, span := a.tracer.Start(ctx, "budget.CurrentPeriodTotal",
		trace.WithAttributes(attribute.String("reset_cycle", string(cycle))))
	defer span.End()

	if entry, ok := a.cache.Get(ctx, userID, cycle); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return FromEntry(entry), nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))
	return a.Recompute(ctx, userID, cycle)
}

// Recompute sums the user's current period from the ledger and seeds the
// cache with the result. Expenses dated later today are included. A failed
// seed is logged and does not fail the call.
func (a *Aggregator) Recompute(ctx context.Context, userID string, cycle period.Cycle) (Result, error) {
	return a.RecomputeThrough(ctx, userID, cycle, time.Time{})
}

// RecomputeThrough is Recompute with the ledger read extended to at least
// through, so an expense dated after today still lands in the seeded total.
// The reported EndDate stays the evaluation instant.
func (a *Aggregator) RecomputeThrough(ctx context.Context, userID string, cycle period.Cycle, through time.Time) (Result, error) {
	cycle = cycle.Normalize()
	now := a.now()
	r := period.CurrentRange(cycle, now)

	until := period.EndOfDay(now)
	if through.After(until) {
		until = through
	}
	expenses, err := a.ledger.Find(ctx, userID, r.Start, until)
	if err != nil {
		return Result{}, fmt.Errorf("recompute %s period: %w", cycle, err)
	}
	total, count := ledger.Sum(expenses)

	res := Result{
		Total:      total,
		Count:      count,
		StartDate:  r.Start,
		EndDate:    r.End,
		ResetCycle: cycle,
		Seeded:     true,
	}

	entry := cache.Entry{
		Total:      res.Total,
		Count:      res.Count,
		StartDate:  res.StartDate,
		EndDate:    res.EndDate,
		ResetCycle: cycle,
	}
	if err := a.cache.Set(ctx, userID, cycle, entry); err != nil {
		a.logger.Warn("failed to seed budget cache", "user_id", userID, "reset_cycle", cycle, "error", err)
	}

	a.logger.Debug("budget period recomputed",
		"user_id", userID,
		"reset_cycle", cycle,
		"total", total,
		"count", count,
	)
	return res, nil
}

// DisplayTotals returns the week, month and year totals relative to now,
// independent of the user's reset cycle.
func (a *Aggregator) DisplayTotals(ctx context.Context, userID string) (DisplayTotals, error) {
	ctx, span := a.tracer.Start(ctx, "budget.DisplayTotals")
	defer span.End()

	now := a.now()
	var out DisplayTotals
	for _, d := range []struct {
		display period.Display
		dst     *PeriodTotal
	}{
		{period.Week, &out.Week},
		{period.Month, &out.Month},
		{period.Year, &out.Year},
	} {
		r := period.DisplayRange(d.display, now)
		expenses, err := a.ledger.Find(ctx, userID, r.Start, r.End)
		if err != nil {
			return DisplayTotals{}, fmt.Errorf("%s totals: %w", d.display, err)
		}
		total, count := ledger.Sum(expenses)
		*d.dst = PeriodTotal{
			Total:     total,
			Count:     count,
			Period:    d.display.Label(),
			StartDate: r.Start,
			EndDate:   r.End,
		}
	}
	return out, nil
}
