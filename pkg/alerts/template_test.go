package alerts

import (
	"strings"
	"testing"
	"time"

	"pennywise-hq/budgetd/pkg/period"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		threshold float64
		cycle     period.Cycle
		want      string
	}{
		{0.5, period.Monthly, "Budget Alert - 50% of your monthly budget reached"},
		{0.75, period.Weekly, "Budget Alert - 75% of your weekly budget reached"},
		{1.0, period.Yearly, "Budget Exceeded - 100% of your yearly limit surpassed"},
		{1.5, "", "Budget Exceeded - 150% of your monthly limit surpassed"},
	}
	for _, tt := range tests {
		if got := Subject(tt.threshold, tt.cycle); got != tt.want {
			t.Errorf("Subject(%v, %q) = %q, want %q", tt.threshold, tt.cycle, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	date := time.Date(2024, 3, 14, 12, 0, 0, 0, time.Local)
	base := RenderInput{
		ResetCycle:   period.Monthly,
		Currency:     "USD",
		Budget:       100,
		CurrentTotal: 60,
		Expense:      ExpenseSummary{Title: "Groceries <weekly>", BaseAmount: 42.1, Date: date},
		PeriodStart:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local),
		PeriodEnd:    date,
	}

	t.Run("alert", func(t *testing.T) {
		in := base
		in.Threshold = 0.5
		msg, err := Render(in)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		for _, want := range []string{
			"Budget Alert!",
			"You've reached 50% of your budget",
			"USD 100.00",
			"USD 60.00",
			"Remaining: USD 40.00",
			"No description",
			"-USD 42.10",
			"Groceries &lt;weekly&gt;",
			"Mar 1, 2024 - Mar 14, 2024",
			"Monthly",
			DefaultFrontendURL + "/dashboard/budget",
			"View Budget Dashboard",
		} {
			if !strings.Contains(msg.Body, want) {
				t.Errorf("Expected body to contain %q", want)
			}
		}
	})

	t.Run("exceeded", func(t *testing.T) {
		in := base
		in.Threshold = 1.0
		in.CurrentTotal = 125.5
		in.FrontendURL = "https://app.example.com/"
		in.Expense.Description = "corner shop"
		msg, err := Render(in)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		for _, want := range []string{
			"Budget Exceeded!",
			"You have exceeded your budget!",
			"Over budget by: USD 25.50",
			"corner shop",
			"https://app.example.com/dashboard/budget",
		} {
			if !strings.Contains(msg.Body, want) {
				t.Errorf("Expected body to contain %q", want)
			}
		}
		if !strings.HasPrefix(msg.Subject, "Budget Exceeded") {
			t.Errorf("Unexpected subject %q", msg.Subject)
		}
	})
}
