package expense

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"pennywise-hq/budgetd/pkg/alerts"
	"pennywise-hq/budgetd/pkg/budget"
	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/period"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/queue"
	"pennywise-hq/budgetd/pkg/rates"
)

type staticRates struct {
	tables map[string]rates.Table
	calls  int
}

func (s *staticRates) Rates(ctx context.Context, base string) (rates.Table, error) {
	s.calls++
	t, ok := s.tables[base]
	if !ok {
		return nil, rates.ErrRateUnavailable
	}
	return t, nil
}

type failingAlerts struct{ calls int }

func (f *failingAlerts) CheckAndFire(ctx context.Context, in alerts.Input) (alerts.Outcome, error) {
	f.calls++
	return alerts.Outcome{}, errors.New("queue unavailable")
}

type fixture struct {
	svc    *Service
	ledger *ledger.MemoryStore
	prefs  *preference.MemoryStore
	cache  *cache.BudgetCache
	kv     *kv.MemoryStore
	queue  *queue.MemoryQueue
	rates  *staticRates
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }

	store := kv.NewMemoryStoreWithConfig(kv.MemoryStoreConfig{Clock: clock})
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		ledger: ledger.NewMemoryStore(),
		prefs:  preference.NewMemoryStore(),
		cache:  cache.New(store, cache.WithClock(clock)),
		kv:     store,
		queue:  queue.NewMemoryQueue(clock),
		rates: &staticRates{tables: map[string]rates.Table{
			"usd": {"inr": 80, "eur": 0.9},
		}},
		now: now,
	}
	f.svc = NewService(Deps{
		Ledger:      f.ledger,
		Preferences: f.prefs,
		Cache:       f.cache,
		Aggregator:  budget.NewAggregator(f.ledger, f.cache, clock),
		Rates:       f.rates,
		Alerts:      alerts.NewEngine(f.queue, f.prefs, alerts.EngineConfig{}),
	})
	return f
}

func (f *fixture) savePref(t *testing.T, budgetAmount float64) {
	t.Helper()
	p := preference.Defaults("u1", "INR")
	p.Budget = budgetAmount
	if err := f.prefs.Save(context.Background(), p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func (f *fixture) input(amount float64, currency string) Input {
	return Input{
		Title:         "Lunch",
		Amount:        amount,
		Currency:      currency,
		Category:      "Food",
		Date:          f.now.Add(-time.Hour),
		PaymentMethod: "upi",
	}
}

var alice = User{ID: "u1", Email: "alice@example.com"}

type brokenFind struct {
	*ledger.MemoryStore
}

func (b brokenFind) Find(ctx context.Context, userID string, start, end time.Time) ([]ledger.Expense, error) {
	return nil, errors.New("ledger offline")
}

func TestInputValidate(t *testing.T) {
	valid := Input{Title: "x", Amount: 1, Currency: "INR", Category: "Food", Date: time.Now()}
	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{"title", func(in *Input) { in.Title = " " }, "title"},
		{"amount", func(in *Input) { in.Amount = 0 }, "amount"},
		{"currency", func(in *Input) { in.Currency = "" }, "currency"},
		{"category", func(in *Input) { in.Category = "" }, "category"},
		{"date", func(in *Input) { in.Date = time.Time{} }, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("Expected validation error on %s, got %v", tt.field, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("Expected error to match ErrValidation")
			}
		})
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid input, got %v", err)
	}
}

func TestAdd_ColdStartThenIncrement(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)
	ctx := context.Background()

	res, err := f.svc.Add(ctx, alice, f.input(40, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 40 {
		t.Errorf("Expected total 40 after first add, got %v", res.BudgetStatus.CurrentPeriodTotal)
	}
	if res.Expense.PaymentMethod != ledger.UPI {
		t.Errorf("Expected UPI, got %q", res.Expense.PaymentMethod)
	}
	if f.rates.calls != 0 {
		t.Errorf("Expected same-currency add to skip rate lookup, got %d calls", f.rates.calls)
	}

	res, err = f.svc.Add(ctx, alice, f.input(25, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	st := res.BudgetStatus
	if st.CurrentPeriodTotal != 65 {
		t.Errorf("Expected total 65, got %v", st.CurrentPeriodTotal)
	}
	if st.Remaining == nil || *st.Remaining != 35 || st.BudgetExceeded {
		t.Errorf("Unexpected status %+v", st)
	}
	if st.ResetCycle != "monthly" || !st.PeriodStart.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)) {
		t.Errorf("Unexpected period %s from %v", st.ResetCycle, st.PeriodStart)
	}

	entry, ok := f.cache.Get(ctx, "u1", period.Monthly)
	if !ok || entry.Total != 65 || entry.Count != 2 {
		t.Errorf("Expected cached 65/2, got %+v %v", entry, ok)
	}

	if len(res.Alerts) != 1 || res.Alerts[0] != 0.5 {
		t.Errorf("Expected the 50%% alert, got %v", res.Alerts)
	}
}

func TestAdd_ConvertsCurrency(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 0)

	res, err := f.svc.Add(context.Background(), alice, f.input(2, "usd"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.Expense.BaseAmount != 160 || res.Expense.BaseCurrency != "INR" || res.Expense.Currency != "USD" {
		t.Errorf("Unexpected conversion %+v", res.Expense)
	}
	if res.BudgetStatus.Remaining != nil {
		t.Errorf("Expected no remaining without a budget, got %v", *res.BudgetStatus.Remaining)
	}
}

func TestAdd_UsesExpenseCurrencyWithoutPreference(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Add(context.Background(), alice, f.input(10, "EUR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.Expense.BaseCurrency != "EUR" || res.Expense.BaseAmount != 10 {
		t.Errorf("Expected EUR base without preference, got %+v", res.Expense)
	}
}

func TestAdd_RejectsBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name  string
		input func(f *fixture) Input
		want  error
	}{
		{"missing rate", func(f *fixture) Input { return f.input(5, "GBP") }, rates.ErrRateUnavailable},
		{"too large", func(f *fixture) Input { return f.input(2_000_000, "USD") }, ErrAmountTooLarge},
		{"negative", func(f *fixture) Input { return f.input(-5, "INR") }, ErrInvalidAmount},
		{"infinite", func(f *fixture) Input { return f.input(math.Inf(1), "INR") }, ErrInvalidAmount},
		{"missing title", func(f *fixture) Input {
			in := f.input(5, "INR")
			in.Title = ""
			return in
		}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.savePref(t, 100)
			ctx := context.Background()

			if _, err := f.svc.Add(ctx, alice, tt.input(f)); !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if n, _ := f.ledger.Count(ctx, ledger.Filter{UserID: "u1"}); n != 0 {
				t.Errorf("Expected no ledger rows, got %d", n)
			}
			if f.kv.Size() != 0 {
				t.Errorf("Expected cache untouched, got %d keys", f.kv.Size())
			}
			if s, _ := f.queue.Stats(ctx); s.Total() != 0 {
				t.Errorf("Expected no alerts queued, got %+v", s)
			}
		})
	}
}

func TestAdd_AlertFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 10)
	checker := &failingAlerts{}
	f.svc.deps.Alerts = checker

	res, err := f.svc.Add(context.Background(), alice, f.input(50, "INR"))
	if err != nil {
		t.Fatalf("Expected add to succeed, got %v", err)
	}
	if checker.calls != 1 || !res.BudgetStatus.BudgetExceeded {
		t.Errorf("Expected alert check and exceeded status, got %d %+v", checker.calls, res.BudgetStatus)
	}
}

func TestAdd_OverBudgetQueuesBothThresholds(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)
	ctx := context.Background()

	res, err := f.svc.Add(ctx, alice, f.input(120, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(res.Alerts) != 2 {
		t.Fatalf("Expected two alerts, got %v", res.Alerts)
	}
	stored, _ := f.prefs.Get(ctx, "u1")
	if stored.Alert.LastThreshold != 1.0 || stored.Alert.PeriodKey != "2024-03-01" {
		t.Errorf("Unexpected alert state %+v", stored.Alert)
	}

	res, err = f.svc.Add(ctx, alice, f.input(5, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(res.Alerts) != 0 {
		t.Errorf("Expected no repeat alerts, got %v", res.Alerts)
	}
}

func TestTotals(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 200)
	ctx := context.Background()

	for _, amount := range []float64{50, 25.25} {
		if _, err := f.svc.Add(ctx, alice, f.input(amount, "INR")); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	got, err := f.svc.Totals(ctx, "u1")
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	info := got.BudgetInfo
	if info.CurrentPeriodTotal != 75.25 || info.CurrentPeriodCount != 2 {
		t.Errorf("Unexpected current period %+v", info)
	}
	if info.PercentageUsed != 38 {
		t.Errorf("Expected 38%% used, got %d", info.PercentageUsed)
	}
	if info.PeriodDescription != "Current monthly period" || got.Currency != "INR" {
		t.Errorf("Unexpected description %q / currency %q", info.PeriodDescription, got.Currency)
	}
	if got.Totals.Week.Total != 75.25 || got.Totals.Year.Count != 2 {
		t.Errorf("Unexpected display totals %+v", got.Totals)
	}
}

func TestUpdateAndDelete_Invalidate(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)
	ctx := context.Background()

	res, err := f.svc.Add(ctx, alice, f.input(40, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, ok := f.cache.Get(ctx, "u1", period.Monthly); !ok {
		t.Fatal("Expected cache entry after add")
	}

	amount := 1.5
	currency := "USD"
	updated, err := f.svc.Update(ctx, "u1", res.Expense.ID, Patch{Amount: &amount, Currency: &currency})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.BaseAmount != 120 {
		t.Errorf("Expected reconverted base 120, got %v", updated.BaseAmount)
	}
	if _, ok := f.cache.Get(ctx, "u1", period.Monthly); ok {
		t.Error("Expected cache invalidated after update")
	}

	totals, _ := f.svc.Totals(ctx, "u1")
	if totals.BudgetInfo.CurrentPeriodTotal != 120 {
		t.Errorf("Expected recomputed total 120, got %v", totals.BudgetInfo.CurrentPeriodTotal)
	}

	if err := f.svc.Delete(ctx, "u1", res.Expense.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := f.cache.Get(ctx, "u1", period.Monthly); ok {
		t.Error("Expected cache invalidated after delete")
	}
	if err := f.svc.Delete(ctx, "u1", res.Expense.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSavePreference(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)
	ctx := context.Background()

	if _, err := f.svc.Add(ctx, alice, f.input(60, "INR")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p, _ := f.svc.Preference(ctx, "u1")
	p.ResetCycle = period.Weekly
	p.Alert = preference.AlertState{}
	if err := f.svc.SavePreference(ctx, p); err != nil {
		t.Fatalf("SavePreference failed: %v", err)
	}
	if _, ok := f.cache.Get(ctx, "u1", period.Monthly); ok {
		t.Error("Expected cache invalidated after cycle change")
	}
	stored, _ := f.prefs.Get(ctx, "u1")
	if stored.Alert.LastThreshold != 0.5 {
		t.Errorf("Expected alert state preserved, got %+v", stored.Alert)
	}

	p.BaseCurrency = "RUPEES"
	if err := f.svc.SavePreference(ctx, p); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestExport_ReadsAllPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < exportPageSize+3; i++ {
		e := &ledger.Expense{
			UserID: "u1", Title: "x", Amount: 1, Currency: "INR",
			BaseAmount: 1, BaseCurrency: "INR", Category: "Food",
			Date: f.now.Add(-time.Duration(i) * time.Minute),
		}
		if err := f.ledger.Insert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.svc.Export(ctx, "u1", ledger.Filter{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(got) != exportPageSize+3 {
		t.Errorf("Expected %d expenses, got %d", exportPageSize+3, len(got))
	}
	if !got[0].Date.After(got[len(got)-1].Date) {
		t.Error("Expected newest first")
	}
}

func TestAdd_MonthlyScenarioFiresEachThresholdOnce(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)
	ctx := context.Background()

	res, err := f.svc.Add(ctx, alice, f.input(60, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 60 || len(res.Alerts) != 1 || res.Alerts[0] != 0.5 {
		t.Fatalf("Expected total 60 with the 50%% alert, got %v %v", res.BudgetStatus.CurrentPeriodTotal, res.Alerts)
	}

	res, err = f.svc.Add(ctx, alice, f.input(50, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 110 || len(res.Alerts) != 1 || res.Alerts[0] != 1.0 {
		t.Fatalf("Expected total 110 with only the 100%% alert, got %v %v", res.BudgetStatus.CurrentPeriodTotal, res.Alerts)
	}

	entry, ok := f.cache.Get(ctx, "u1", period.Monthly)
	if !ok || entry.Count != 2 {
		t.Errorf("Expected cached count 2, got %+v %v", entry, ok)
	}
	p, err := f.prefs.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Alert.LastThreshold != 1.0 || p.Alert.PeriodKey != "2024-03-01" {
		t.Errorf("Unexpected alert state %+v", p.Alert)
	}
	stats, _ := f.queue.Stats(ctx)
	if stats.Waiting != 2 {
		t.Errorf("Expected 2 queued alerts, got %d", stats.Waiting)
	}
}

func TestAdd_LedgerReadFailureKeepsExpense(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 10)
	broken := brokenFind{f.ledger}
	f.svc.deps.Aggregator = budget.NewAggregator(broken, f.cache, func() time.Time { return f.now })

	res, err := f.svc.Add(context.Background(), alice, f.input(50, "INR"))
	if err != nil {
		t.Fatalf("Expected add to succeed, got %v", err)
	}
	if res.Expense == nil || len(res.Alerts) != 0 {
		t.Errorf("Expected persisted expense without alerts, got %+v", res)
	}
	if n, _ := f.ledger.Count(context.Background(), ledger.Filter{UserID: "u1"}); n != 1 {
		t.Errorf("Expected 1 ledger row, got %d", n)
	}
}

func TestAdd_ColdStartCountsExpenseDatedLaterToday(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)
	ctx := context.Background()

	in := f.input(60, "INR")
	in.Date = f.now.Add(2 * time.Hour)
	res, err := f.svc.Add(ctx, alice, in)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 60 {
		t.Errorf("Expected cold start total 60, got %v", res.BudgetStatus.CurrentPeriodTotal)
	}
	if len(res.Alerts) != 1 || res.Alerts[0] != 0.5 {
		t.Errorf("Expected the 50%% alert, got %v", res.Alerts)
	}

	res, err = f.svc.Add(ctx, alice, f.input(10, "INR"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 70 || len(res.Alerts) != 0 {
		t.Errorf("Expected total 70 without new alerts, got %v %v", res.BudgetStatus.CurrentPeriodTotal, res.Alerts)
	}
}

func TestAdd_ColdStartCountsFutureDatedExpense(t *testing.T) {
	f := newFixture(t)
	f.savePref(t, 100)

	in := f.input(120, "INR")
	in.Date = time.Date(2024, 3, 25, 9, 0, 0, 0, time.Local)
	res, err := f.svc.Add(context.Background(), alice, in)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 120 || !res.BudgetStatus.BudgetExceeded {
		t.Errorf("Expected exceeded total 120, got %+v", res.BudgetStatus)
	}
	if len(res.Alerts) != 2 {
		t.Errorf("Expected both thresholds, got %v", res.Alerts)
	}
}
