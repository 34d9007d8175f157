package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pennywise-hq/budgetd/pkg/period"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/queue"
)

// JobName is the queue job name of alert emails.
const JobName = "budget-alert"

// Retry policy of alert jobs.
const (
	JobAttempts     = 3
	JobBackoffDelay = 2 * time.Second
)

// Payload is the body of a budget-alert job.
type Payload struct {
	Email        string       `json:"email"`
	Subject      string       `json:"subject"`
	Body         string       `json:"body"`
	UserID       string       `json:"userId"`
	Threshold    float64      `json:"threshold"`
	CurrentTotal float64      `json:"currentTotal"`
	Budget       float64      `json:"budget"`
	ResetCycle   period.Cycle `json:"resetCycle"`
}

// Enqueuer is the part of queue.Queue the engine needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts queue.Options) (string, error)
}

// StateStore persists alert state.
type StateStore interface {
	SaveAlertState(ctx context.Context, userID string, state preference.AlertState) error
}

// Metrics receives alert outcomes. A nil Metrics is ignored.
type Metrics interface {
	RecordAlert(threshold float64, outcome string)
}

// Input is everything CheckAndFire needs about one expense add.
type Input struct {
	UserID       string
	Email        string
	CurrentTotal float64
	Budget       float64
	ResetCycle   period.Cycle
	BaseCurrency string
	Expense      ExpenseSummary
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Preference   *preference.Preference
}

// Outcome reports what CheckAndFire did.
type Outcome struct {
	// Crossed lists the thresholds newly reached, ascending.
	Crossed []float64
	// JobIDs holds the ids of successfully enqueued jobs.
	JobIDs []string
	// State is the alert state after the call.
	State preference.AlertState
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// EnqueueTimeout bounds each enqueue call.
	// Default: 5 seconds
	EnqueueTimeout time.Duration

	// FrontendURL is the dashboard root linked from emails.
	// Default: http://localhost:5173
	FrontendURL string

	Metrics Metrics
}

// Engine fires threshold alerts.
type Engine struct {
	queue  Enqueuer
	state  StateStore
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(q Enqueuer, state StateStore, cfg EngineConfig) *Engine {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 5 * time.Second
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = DefaultFrontendURL
	}
	return &Engine{
		queue:  q,
		state:  state,
		cfg:    cfg,
		logger: slog.Default().With("component", "alert-engine"),
	}
}

// Crossed returns the thresholds t with progress >= t and t > last, ascending.
func Crossed(thresholds preference.Thresholds, progress, last float64) []float64 {
	var out []float64
	for _, t := range thresholds.Normalize() {
		if progress >= t && t > last {
			out = append(out, t)
		}
	}
	return out
}

// CheckAndFire enqueues one alert per newly crossed threshold and records
// the new high-water mark. Enqueue failures are logged and skipped; the
// state still advances to the highest crossed threshold.
func (e *Engine) CheckAndFire(ctx context.Context, in Input) (Outcome, error) {
	pref := in.Preference
	if pref == nil {
		return Outcome{}, errors.New("alerts: preference is required")
	}
	if in.Budget <= 0 || !pref.Notifications {
		return Outcome{State: pref.Alert}, nil
	}

	cycle := in.ResetCycle.Normalize()
	key := period.CurrentKey(cycle, time.Now())
	if !in.PeriodStart.IsZero() {
		key = period.Key(in.PeriodStart)
	}

	progress := in.CurrentTotal / in.Budget
	last := pref.Alert.EffectiveLast(cycle, key)
	crossed := Crossed(pref.AlertThresholds, progress, last)

	e.logger.Debug("budget alert check",
		"user_id", in.UserID,
		"progress", progress,
		"last_threshold", last,
		"crossed", crossed,
	)

	out := Outcome{Crossed: crossed, State: pref.Alert}
	if len(crossed) == 0 {
		return out, nil
	}

	for _, t := range crossed {
		id, err := e.enqueue(ctx, in, cycle, t)
		if err != nil {
			e.record(t, "enqueue_failed")
			e.logger.Error("failed to queue budget alert",
				"user_id", in.UserID,
				"threshold", t,
				"error", err,
			)
			continue
		}
		e.record(t, "queued")
		e.logger.Info("queued budget alert", "user_id", in.UserID, "threshold", t, "job_id", id)
		out.JobIDs = append(out.JobIDs, id)
	}

	state := preference.AlertState{PeriodKey: key, ResetCycle: cycle, LastThreshold: crossed[len(crossed)-1]}
	pref.Alert = state
	out.State = state
	if err := e.state.SaveAlertState(ctx, in.UserID, state); err != nil {
		return out, fmt.Errorf("save alert state: %w", err)
	}
	return out, nil
}

func (e *Engine) enqueue(ctx context.Context, in Input, cycle period.Cycle, threshold float64) (string, error) {
	msg, err := Render(RenderInput{
		Threshold:    threshold,
		ResetCycle:   cycle,
		Currency:     in.BaseCurrency,
		Budget:       in.Budget,
		CurrentTotal: in.CurrentTotal,
		Expense:      in.Expense,
		PeriodStart:  in.PeriodStart,
		PeriodEnd:    in.PeriodEnd,
		FrontendURL:  e.cfg.FrontendURL,
	})
	if err != nil {
		return "", err
	}

	priority := queue.PriorityNormal
	if OverBudget(threshold) {
		priority = queue.PriorityHigh
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EnqueueTimeout)
	defer cancel()

	return e.queue.Enqueue(ctx, JobName, Payload{
		Email:        in.Email,
		Subject:      msg.Subject,
		Body:         msg.Body,
		UserID:       in.UserID,
		Threshold:    threshold,
		CurrentTotal: in.CurrentTotal,
		Budget:       in.Budget,
		ResetCycle:   cycle,
	}, queue.Options{
		Priority: priority,
		Attempts: JobAttempts,
		Backoff:  queue.Backoff{Type: queue.BackoffExponential, Delay: JobBackoffDelay},
	})
}

func (e *Engine) record(threshold float64, outcome string) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordAlert(threshold, outcome)
	}
}
