// Package expense ties expense writes to the budget cache and the alert
// engine.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pennywise-hq/budgetd/pkg/alerts"
	"pennywise-hq/budgetd/pkg/budget"
	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/rates"
	"pennywise-hq/budgetd/pkg/telemetry/tracing"
)

// MaxBaseAmount is the largest accepted converted amount.
const MaxBaseAmount = 100_000_000

// User identifies the caller.
type User struct {
	ID    string
	Email string
}

// Input is a new expense as submitted.
type Input struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Category      string    `json:"category"`
	Date          time.Time `json:"date"`
	PaymentMethod string    `json:"paymentMethod"`
}

// Validate checks that every required field is present.
func (in Input) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return missing("title")
	case in.Amount == 0 || math.IsNaN(in.Amount):
		return missing("amount")
	case strings.TrimSpace(in.Currency) == "":
		return missing("currency")
	case strings.TrimSpace(in.Category) == "":
		return missing("category")
	case in.Date.IsZero():
		return missing("date")
	}
	return nil
}

// BudgetStatus summarises the current period after an add.
type BudgetStatus struct {
	CurrentPeriodTotal float64   `json:"currentPeriodTotal"`
	Budget             float64   `json:"budget"`
	BudgetExceeded     bool      `json:"budgetExceeded"`
	Remaining          *float64  `json:"remaining"`
	ResetCycle         string    `json:"resetCycle"`
	PeriodStart        time.Time `json:"periodStart"`
	PeriodEnd          time.Time `json:"periodEnd"`
}

// AddResult is returned by Add.
type AddResult struct {
	Expense      *ledger.Expense `json:"expense"`
	BudgetStatus BudgetStatus    `json:"budgetStatus"`
	// Alerts lists thresholds queued by this add.
	Alerts []float64 `json:"-"`
}

// AlertChecker evaluates budget thresholds after an add.
type AlertChecker interface {
	CheckAndFire(ctx context.Context, in alerts.Input) (alerts.Outcome, error)
}

// Metrics receives expense outcomes. A nil Metrics is ignored.
type Metrics interface {
	RecordExpense(outcome string)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Ledger      ledger.Store
	Preferences preference.Store
	Cache       *cache.BudgetCache
	Aggregator  *budget.Aggregator
	Rates       rates.Rater
	Alerts      AlertChecker
	Metrics     Metrics
}

// Service implements the expense operations.
type Service struct {
	deps   Deps
	tracer trace.Tracer
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(deps Deps) *Service {
	return &Service{
		deps:   deps,
		tracer: otel.Tracer("pennywise/expense"),
		logger: slog.Default().With("component", "expense-service"),
	}
}

// Add records an expense, updates the period total and evaluates alerts.
// Conversion and validation failures abort before anything is written.
// Alert failures are logged and never fail the add.
func (s *Service) Add(ctx context.Context, user User, in Input) (*AddResult, error) {
	ctx, span := s.tracer.Start(ctx, "expense.Add")
	defer span.End()
	tracing.SetUser(span, user.ID)

	res, err := s.add(ctx, span, user, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.record("rejected")
		return nil, err
	}
	s.record("created")
	return res, nil
}

func (s *Service) add(ctx context.Context, span trace.Span, user User, in Input) (*AddResult, error) {
	if user.ID == "" {
		return nil, missing("user")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	pref, err := preference.Load(ctx, s.deps.Preferences, user.ID, currency)
	if err != nil {
		return nil, fmt.Errorf("load preference: %w", err)
	}
	cycle := pref.Cycle()
	span.SetAttributes(
		tracing.AttrResetCycle.String(string(cycle)),
		tracing.AttrCurrency.String(currency),
		attribute.String("base_currency", pref.BaseCurrency),
	)

	conv, err := rates.Convert(ctx, s.deps.Rates, in.Amount, currency, pref.BaseCurrency)
	if err != nil {
		return nil, err
	}
	if currency != pref.BaseCurrency {
		s.logger.Debug("currency conversion",
			"amount", in.Amount,
			"from", currency,
			"to", pref.BaseCurrency,
			"rate", conv.Rate,
			"base_amount", conv.Amount,
		)
	}
	if math.IsNaN(conv.Amount) || math.IsInf(conv.Amount, 0) || conv.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if conv.Amount > MaxBaseAmount {
		return nil, ErrAmountTooLarge
	}

	method, _ := ledger.ParsePaymentMethod(in.PaymentMethod)
	exp := &ledger.Expense{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		Currency:      currency,
		BaseAmount:    conv.Amount,
		BaseCurrency:  pref.BaseCurrency,
		Category:      strings.TrimSpace(in.Category),
		Date:          in.Date,
		PaymentMethod: method,
	}
	if err := s.deps.Ledger.Insert(ctx, exp); err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	var current budget.Result
	if entry, ok := s.deps.Cache.IncrementalUpdate(ctx, user.ID, cycle, exp.BaseAmount); ok {
		current = budget.FromEntry(entry)
	} else {
		current, err = s.deps.Aggregator.RecomputeThrough(ctx, user.ID, cycle, exp.Date)
		if err != nil {
			// The expense is already persisted; only the advisory steps are lost.
			s.logger.Error("period total unavailable, skipping alert check",
				"user_id", user.ID,
				"expense_id", exp.ID,
				"error", err,
			)
			return &AddResult{
				Expense:      exp,
				BudgetStatus: BudgetStatus{Budget: pref.Budget, ResetCycle: string(cycle)},
			}, nil
		}
	}
	span.SetAttributes(attribute.Bool("seeded", current.Seeded), attribute.Float64("period_total", current.Total))

	res := &AddResult{
		Expense:      exp,
		BudgetStatus: status(current, pref.Budget),
	}

	if s.deps.Alerts != nil {
		email := user.Email
		if email == "" {
			email = pref.Email
		}
		out, err := s.deps.Alerts.CheckAndFire(ctx, alerts.Input{
			UserID:       user.ID,
			Email:        email,
			CurrentTotal: current.Total,
			Budget:       pref.Budget,
			ResetCycle:   cycle,
			BaseCurrency: pref.BaseCurrency,
			Expense: alerts.ExpenseSummary{
				Title:       exp.Title,
				Description: exp.Description,
				BaseAmount:  exp.BaseAmount,
				Date:        exp.Date,
			},
			PeriodStart: current.StartDate,
			PeriodEnd:   current.EndDate,
			Preference:  pref,
		})
		if err != nil {
			s.logger.Error("threshold alert check failed", "user_id", user.ID, "error", err)
		}
		res.Alerts = out.Crossed
	}

	s.logger.Info("expense added",
		"user_id", user.ID,
		"expense_id", exp.ID,
		"base_amount", exp.BaseAmount,
		"period_total", current.Total,
		"budget", pref.Budget,
	)
	return res, nil
}

func status(r budget.Result, limit float64) BudgetStatus {
	st := BudgetStatus{
		CurrentPeriodTotal: r.Total,
		Budget:             limit,
		ResetCycle:         string(r.ResetCycle),
		PeriodStart:        r.StartDate,
		PeriodEnd:          r.EndDate,
	}
	if limit > 0 {
		remaining := math.Max(0, limit-r.Total)
		st.Remaining = &remaining
		st.BudgetExceeded = r.Total > limit
	}
	return st
}

// BudgetInfo describes the current budget period.
type BudgetInfo struct {
	Budget             float64   `json:"budget"`
	ResetCycle         string    `json:"resetCycle"`
	CurrentPeriodTotal float64   `json:"currentPeriodTotal"`
	CurrentPeriodCount int64     `json:"currentPeriodCount"`
	Remaining          *float64  `json:"remaining"`
	Exceeded           bool      `json:"exceeded"`
	PercentageUsed     int       `json:"percentageUsed"`
	PeriodStart        time.Time `json:"periodStart"`
	PeriodEnd          time.Time `json:"periodEnd"`
	PeriodDescription  string    `json:"periodDescription"`
}

// Totals is the dashboard summary of a user's spend.
type Totals struct {
	Totals     budget.DisplayTotals `json:"totals"`
	BudgetInfo BudgetInfo           `json:"budgetInfo"`
	Currency   string               `json:"currency"`
}

// Totals returns the week, month and year totals plus the current budget
// period.
func (s *Service) Totals(ctx context.Context, userID string) (*Totals, error) {
	ctx, span := s.tracer.Start(ctx, "expense.Totals")
	defer span.End()

	pref, err := preference.Load(ctx, s.deps.Preferences, userID, preference.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("load preference: %w", err)
	}
	display, err := s.deps.Aggregator.DisplayTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, err := s.deps.Aggregator.CurrentPeriodTotal(ctx, userID, pref.Cycle())
	if err != nil {
		return nil, err
	}

	st := status(current, pref.Budget)
	info := BudgetInfo{
		Budget:             pref.Budget,
		ResetCycle:         string(pref.Cycle()),
		CurrentPeriodTotal: current.Total,
		CurrentPeriodCount: current.Count,
		Remaining:          st.Remaining,
		Exceeded:           st.BudgetExceeded,
		PeriodStart:        current.StartDate,
		PeriodEnd:          current.EndDate,
		PeriodDescription:  fmt.Sprintf("Current %s period", pref.Cycle()),
	}
	if pref.Budget > 0 {
		info.PercentageUsed = int(math.Round(current.Total / pref.Budget * 100))
	}
	return &Totals{Totals: display, BudgetInfo: info, Currency: pref.BaseCurrency}, nil
}

// List returns a page of the user's expenses, newest first.
func (s *Service) List(ctx context.Context, userID string, f ledger.Filter) (ledger.Page, error) {
	f.UserID = userID
	return s.deps.Ledger.List(ctx, f)
}

// exportPageSize bounds each ledger page read by Export.
const exportPageSize = 500

// Export returns every expense matching f, newest first, reading the ledger
// page by page.
func (s *Service) Export(ctx context.Context, userID string, f ledger.Filter) ([]ledger.Expense, error) {
	f.UserID = userID
	f.Limit = exportPageSize
	var out []ledger.Expense
	for page := 1; ; page++ {
		f.Page = page
		p, err := s.deps.Ledger.List(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		if !p.HasNext {
			return out, nil
		}
	}
}

// Patch holds the fields of an expense update. Nil fields are unchanged.
type Patch struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Amount        *float64   `json:"amount"`
	Currency      *string    `json:"currency"`
	Category      *string    `json:"category"`
	Date          *time.Time `json:"date"`
	PaymentMethod *string    `json:"paymentMethod"`
}

// Update applies p to an expense and invalidates the user's cached totals.
// A changed amount or currency is converted again.
func (s *Service) Update(ctx context.Context, userID, id string, p Patch) (*ledger.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "expense.Update")
	defer span.End()

	exp, err := s.deps.Ledger.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	reconvert := false
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, missing("title")
		}
		exp.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		exp.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		if strings.TrimSpace(*p.Category) == "" {
			return nil, missing("category")
		}
		exp.Category = strings.TrimSpace(*p.Category)
	}
	if p.Date != nil {
		if p.Date.IsZero() {
			return nil, missing("date")
		}
		exp.Date = *p.Date
	}
	if p.PaymentMethod != nil {
		exp.PaymentMethod, _ = ledger.ParsePaymentMethod(*p.PaymentMethod)
	}
	if p.Amount != nil && *p.Amount != exp.Amount {
		exp.Amount = *p.Amount
		reconvert = true
	}
	if p.Currency != nil && !strings.EqualFold(*p.Currency, exp.Currency) {
		exp.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
		reconvert = true
	}

	if reconvert {
		conv, err := rates.Convert(ctx, s.deps.Rates, exp.Amount, exp.Currency, exp.BaseCurrency)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(conv.Amount) || math.IsInf(conv.Amount, 0) || conv.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
		if conv.Amount > MaxBaseAmount {
			return nil, ErrAmountTooLarge
		}
		exp.BaseAmount = conv.Amount
	}

	if err := s.deps.Ledger.Update(ctx, exp); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return exp, nil
}

// Delete removes an expense and invalidates the user's cached totals.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ctx, span := s.tracer.Start(ctx, "expense.Delete")
	defer span.End()

	if err := s.deps.Ledger.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Preference returns the user's preference, or the defaults.
func (s *Service) Preference(ctx context.Context, userID string) (*preference.Preference, error) {
	return preference.Load(ctx, s.deps.Preferences, userID, preference.DefaultCurrency)
}

// SavePreference validates and stores p. A changed reset cycle or budget
// invalidates the user's cached totals.
func (s *Service) SavePreference(ctx context.Context, p *preference.Preference) error {
	if err := p.Validate(); err != nil {
		return &ValidationError{Field: "preference", Message: err.Error()}
	}
	p.BaseCurrency = strings.ToUpper(p.BaseCurrency)
	p.AlertThresholds = p.AlertThresholds.Normalize()

	prev, err := s.deps.Preferences.Get(ctx, p.UserID)
	if err != nil && !errors.Is(err, preference.ErrNotFound) {
		return err
	}
	if prev != nil {
		p.Alert = prev.Alert
		p.CreatedAt = prev.CreatedAt
	}
	if err := s.deps.Preferences.Save(ctx, p); err != nil {
		return err
	}
	if prev == nil || prev.Cycle() != p.Cycle() || prev.BaseCurrency != p.BaseCurrency {
		s.invalidate(ctx, p.UserID)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.deps.Cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate budget cache", "user_id", userID, "error", err)
	}
}

func (s *Service) record(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordExpense(outcome)
	}
}
