package alerts

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"pennywise-hq/budgetd/pkg/period"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/queue"
)

type failingQueue struct {
	fail  map[float64]bool
	inner *queue.MemoryQueue
}

func (f *failingQueue) Enqueue(ctx context.Context, name string, payload any, opts queue.Options) (string, error) {
	if p, ok := payload.(Payload); ok && f.fail[p.Threshold] {
		return "", errors.New("redis down")
	}
	return f.inner.Enqueue(ctx, name, payload, opts)
}

func setup(t *testing.T, budget float64) (*Engine, *queue.MemoryQueue, *preference.MemoryStore, *preference.Preference) {
	t.Helper()
	q := queue.NewMemoryQueue(nil)
	prefs := preference.NewMemoryStore()
	p := preference.Defaults("u1", "USD")
	p.Email = "u1@example.com"
	p.Budget = budget
	if err := prefs.Save(context.Background(), p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return NewEngine(q, prefs, EngineConfig{}), q, prefs, p
}

func input(p *preference.Preference, total float64, start time.Time) Input {
	r := period.CurrentRange(p.Cycle(), start)
	return Input{
		UserID:       p.UserID,
		Email:        p.Email,
		CurrentTotal: total,
		Budget:       p.Budget,
		ResetCycle:   p.Cycle(),
		BaseCurrency: p.BaseCurrency,
		Expense:      ExpenseSummary{Title: "Lunch", BaseAmount: 12.5, Date: start},
		PeriodStart:  r.Start,
		PeriodEnd:    r.End,
		Preference:   p,
	}
}

func jobs(t *testing.T, q *queue.MemoryQueue, ids []string) []Payload {
	t.Helper()
	var out []Payload
	for _, id := range ids {
		job, err := q.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		var p Payload
		if err := job.Decode(&p); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func TestCrossed(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		last     float64
		want     []float64
	}{
		{"below all", 0.3, 0, nil},
		{"half", 0.6, 0, []float64{0.5}},
		{"both at once", 1.1, 0, []float64{0.5, 1.0}},
		{"already alerted half", 1.1, 0.5, []float64{1.0}},
		{"exactly at threshold", 0.5, 0, []float64{0.5}},
		{"nothing new", 1.2, 1.0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Crossed(preference.DefaultThresholds, tt.progress, tt.last)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Crossed(%v, %v) = %v, want %v", tt.progress, tt.last, got, tt.want)
			}
		})
	}
}

func TestCheckAndFire_HalfThreshold(t *testing.T) {
	ctx := context.Background()
	engine, q, prefs, p := setup(t, 100)
	now := time.Now()

	out, err := engine.CheckAndFire(ctx, input(p, 60, now))
	if err != nil {
		t.Fatalf("CheckAndFire failed: %v", err)
	}
	if len(out.JobIDs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(out.JobIDs))
	}

	payloads := jobs(t, q, out.JobIDs)
	if payloads[0].Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", payloads[0].Threshold)
	}
	if payloads[0].Subject != "Budget Alert - 50% of your monthly budget reached" {
		t.Errorf("Unexpected subject %q", payloads[0].Subject)
	}
	job, _ := q.Get(ctx, out.JobIDs[0])
	if job.Priority != queue.PriorityNormal || job.Attempts != JobAttempts {
		t.Errorf("Expected normal priority with %d attempts, got %d/%d", JobAttempts, job.Priority, job.Attempts)
	}
	if job.Backoff.Type != queue.BackoffExponential || job.Backoff.Delay != JobBackoffDelay {
		t.Errorf("Unexpected backoff %+v", job.Backoff)
	}

	stored, _ := prefs.Get(ctx, "u1")
	if stored.Alert.LastThreshold != 0.5 || stored.Alert.PeriodKey != period.CurrentKey(period.Monthly, now) {
		t.Errorf("Unexpected stored state %+v", stored.Alert)
	}

	// Same period, still under 100%: nothing new.
	out, err = engine.CheckAndFire(ctx, input(stored, 80, now))
	if err != nil {
		t.Fatalf("CheckAndFire failed: %v", err)
	}
	if len(out.JobIDs) != 0 {
		t.Errorf("Expected no repeat alert, got %d jobs", len(out.JobIDs))
	}
}

func TestCheckAndFire_JumpPastHalfFiresOnlyFull(t *testing.T) {
	ctx := context.Background()
	engine, q, prefs, p := setup(t, 100)
	now := time.Now()
	p.Alert = preference.AlertState{PeriodKey: period.CurrentKey(period.Monthly, now), ResetCycle: period.Monthly, LastThreshold: 0.5}

	out, err := engine.CheckAndFire(ctx, input(p, 110, now))
	if err != nil {
		t.Fatalf("CheckAndFire failed: %v", err)
	}
	payloads := jobs(t, q, out.JobIDs)
	if len(payloads) != 1 || payloads[0].Threshold != 1.0 {
		t.Fatalf("Expected a single 1.0 alert, got %+v", payloads)
	}
	if !strings.HasPrefix(payloads[0].Subject, "Budget Exceeded - 100%") {
		t.Errorf("Unexpected subject %q", payloads[0].Subject)
	}
	job, _ := q.Get(ctx, out.JobIDs[0])
	if job.Priority != queue.PriorityHigh {
		t.Errorf("Expected high priority, got %d", job.Priority)
	}

	stored, _ := prefs.Get(ctx, "u1")
	if stored.Alert.LastThreshold != 1.0 {
		t.Errorf("Expected stored threshold 1.0, got %v", stored.Alert.LastThreshold)
	}
}

func TestCheckAndFire_MultipleThresholdsAscending(t *testing.T) {
	ctx := context.Background()
	engine, q, _, p := setup(t, 100)

	out, err := engine.CheckAndFire(ctx, input(p, 150, time.Now()))
	if err != nil {
		t.Fatalf("CheckAndFire failed: %v", err)
	}
	payloads := jobs(t, q, out.JobIDs)
	if len(payloads) != 2 || payloads[0].Threshold != 0.5 || payloads[1].Threshold != 1.0 {
		t.Fatalf("Expected 0.5 then 1.0, got %+v", payloads)
	}
	if out.State.LastThreshold != 1.0 {
		t.Errorf("Expected state 1.0, got %v", out.State.LastThreshold)
	}
}

func TestCheckAndFire_Disabled(t *testing.T) {
	ctx := context.Background()

	t.Run("zero budget", func(t *testing.T) {
		engine, q, _, p := setup(t, 0)
		out, err := engine.CheckAndFire(ctx, input(p, 500, time.Now()))
		if err != nil || len(out.JobIDs) != 0 {
			t.Fatalf("Expected no alerts, got %v %v", out.JobIDs, err)
		}
		if s, _ := q.Stats(ctx); s.Total() != 0 {
			t.Errorf("Expected empty queue, got %+v", s)
		}
	})

	t.Run("notifications off", func(t *testing.T) {
		engine, q, prefs, p := setup(t, 100)
		p.Notifications = false
		out, err := engine.CheckAndFire(ctx, input(p, 500, time.Now()))
		if err != nil || len(out.JobIDs) != 0 {
			t.Fatalf("Expected no alerts, got %v %v", out.JobIDs, err)
		}
		if s, _ := q.Stats(ctx); s.Total() != 0 {
			t.Errorf("Expected empty queue, got %+v", s)
		}
		stored, _ := prefs.Get(ctx, "u1")
		if stored.Alert.LastThreshold != 0 {
			t.Errorf("Expected state untouched, got %+v", stored.Alert)
		}
	})
}

func TestCheckAndFire_RearmsOnNewPeriod(t *testing.T) {
	ctx := context.Background()
	engine, q, _, p := setup(t, 100)
	p.Alert = preference.AlertState{PeriodKey: "2020-01-01", ResetCycle: period.Monthly, LastThreshold: 1.0}

	out, err := engine.CheckAndFire(ctx, input(p, 60, time.Now()))
	if err != nil {
		t.Fatalf("CheckAndFire failed: %v", err)
	}
	payloads := jobs(t, q, out.JobIDs)
	if len(payloads) != 1 || payloads[0].Threshold != 0.5 {
		t.Fatalf("Expected 0.5 to fire again in the new period, got %+v", payloads)
	}
}

func TestCheckAndFire_RearmsOnCycleChange(t *testing.T) {
	ctx := context.Background()
	engine, q, _, p := setup(t, 100)
	now := time.Now()
	p.Alert = preference.AlertState{PeriodKey: period.CurrentKey(period.Monthly, now), ResetCycle: period.Monthly, LastThreshold: 1.0}
	p.ResetCycle = period.Yearly

	out, err := engine.CheckAndFire(ctx, input(p, 60, now))
	if err != nil {
		t.Fatalf("CheckAndFire failed: %v", err)
	}
	if payloads := jobs(t, q, out.JobIDs); len(payloads) != 1 {
		t.Fatalf("Expected the yearly period to start fresh, got %+v", payloads)
	}
}

func TestCheckAndFire_EnqueueFailure(t *testing.T) {
	ctx := context.Background()
	inner := queue.NewMemoryQueue(nil)
	prefs := preference.NewMemoryStore()
	p := preference.Defaults("u1", "USD")
	p.Budget = 100
	_ = prefs.Save(ctx, p)

	t.Run("only failure still records threshold", func(t *testing.T) {
		engine := NewEngine(&failingQueue{fail: map[float64]bool{0.5: true}, inner: inner}, prefs, EngineConfig{})
		out, err := engine.CheckAndFire(ctx, input(p, 60, time.Now()))
		if err != nil {
			t.Fatalf("Expected enqueue failure to be swallowed, got %v", err)
		}
		if len(out.JobIDs) != 0 {
			t.Errorf("Expected no jobs, got %v", out.JobIDs)
		}
		stored, _ := prefs.Get(ctx, "u1")
		if stored.Alert.LastThreshold != 0.5 {
			t.Errorf("Expected 0.5 recorded, got %+v", stored.Alert)
		}

		again, err := engine.CheckAndFire(ctx, input(stored, 70, time.Now()))
		if err != nil {
			t.Fatalf("CheckAndFire failed: %v", err)
		}
		if len(again.Crossed) != 0 {
			t.Errorf("Expected no re-fire of the failed threshold, got %v", again.Crossed)
		}
	})

	t.Run("state advances to highest crossed", func(t *testing.T) {
		fresh := preference.Defaults("u2", "USD")
		fresh.Budget = 100
		_ = prefs.Save(ctx, fresh)

		engine := NewEngine(&failingQueue{fail: map[float64]bool{1.0: true}, inner: inner}, prefs, EngineConfig{})
		in := input(fresh, 120, time.Now())
		out, err := engine.CheckAndFire(ctx, in)
		if err != nil {
			t.Fatalf("CheckAndFire failed: %v", err)
		}
		if len(out.JobIDs) != 1 || out.State.LastThreshold != 1.0 {
			t.Errorf("Expected one job and 1.0 recorded, got %v %+v", out.JobIDs, out.State)
		}
		stored, _ := prefs.Get(ctx, "u2")
		if stored.Alert.LastThreshold != 1.0 {
			t.Errorf("Expected stored 1.0, got %+v", stored.Alert)
		}
	})
}

func TestCheckAndFire_RequiresPreference(t *testing.T) {
	engine, _, _, _ := setup(t, 100)
	if _, err := engine.CheckAndFire(context.Background(), Input{UserID: "u1", Budget: 100}); err == nil {
		t.Error("Expected error without preference")
	}
}
