package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"pennywise-hq/budgetd/pkg/period"
)

// DefaultFrontendURL is the dashboard root linked from alert emails.
const DefaultFrontendURL = "http://localhost:5173"

// Message is a rendered alert.
type Message struct {
	Subject string
	Body    string
}

// RenderInput is the data an alert email is rendered from.
type RenderInput struct {
	Threshold    float64
	ResetCycle   period.Cycle
	Currency     string
	Budget       float64
	CurrentTotal float64
	Expense      ExpenseSummary
	PeriodStart  time.Time
	PeriodEnd    time.Time
	FrontendURL  string
}

// ExpenseSummary is the latest expense shown in an alert.
type ExpenseSummary struct {
	Title       string
	Description string
	BaseAmount  float64
	Date        time.Time
}

// OverBudget reports whether the threshold marks the budget as exceeded.
func OverBudget(threshold float64) bool {
	return threshold >= 1.0
}

// Percent formats a threshold as a whole percentage.
func Percent(threshold float64) string {
	return fmt.Sprintf("%.0f", math.Round(threshold*100))
}

// Subject returns the alert subject line.
func Subject(threshold float64, cycle period.Cycle) string {
	if OverBudget(threshold) {
		return fmt.Sprintf("Budget Exceeded - %s%% of your %s limit surpassed", Percent(threshold), cycle.Normalize())
	}
	return fmt.Sprintf("Budget Alert - %s%% of your %s budget reached", Percent(threshold), cycle.Normalize())
}

type templateData struct {
	Over         bool
	Percent      string
	Currency     string
	Budget       string
	CurrentTotal string
	Difference   string
	Title        string
	Description  string
	Amount       string
	Date         string
	PeriodStart  string
	PeriodEnd    string
	Cycle        string
	DashboardURL string
}

var alertTemplate = template.Must(template.New("budget-alert").Parse(`<div style="font-family: Segoe UI, Tahoma, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: {{if .Over}}#dc3545{{else}}#fd7e14{{end}};">Budget {{if .Over}}Exceeded{{else}}Alert{{end}}!</h1>
  <div style="border: 1px solid {{if .Over}}#f5c2c7{{else}}#ffeaa7{{end}}; border-radius: 6px; padding: 20px;">
    <h3>{{if .Over}}You have exceeded your budget!{{else}}You've reached {{.Percent}}% of your budget{{end}}</h3>
    <p><strong>Budget:</strong> {{.Currency}} {{.Budget}}</p>
    <p><strong>Current Expenses:</strong> {{.Currency}} {{.CurrentTotal}}</p>
    {{if .Over}}<p><strong>Over budget by: {{.Currency}} {{.Difference}}</strong></p>{{else}}<p><strong>Remaining: {{.Currency}} {{.Difference}}</strong></p>{{end}}
  </div>
  <div style="background: #e9ecef; border-radius: 6px; padding: 20px; margin-top: 20px;">
    <h4>Latest Expense</h4>
    <strong>{{.Title}}</strong><br>
    <span>{{.Description}}</span><br>
    <span style="color: #dc3545; font-weight: bold;">-{{.Currency}} {{.Amount}}</span>
    <span style="color: #6c757d; font-size: 12px;">{{.Date}}</span>
  </div>
  <p><strong>Budget Period:</strong> {{.PeriodStart}} - {{.PeriodEnd}}<br>
  <strong>Reset Cycle:</strong> {{.Cycle}}</p>
  <p style="text-align: center;"><a href="{{.DashboardURL}}">View Budget Dashboard</a></p>
  <p style="color: #6c757d; font-size: 12px; text-align: center;">This is an automated alert from your expense tracker.<br>
  You can manage your notification preferences in your dashboard settings.</p>
</div>`))

const displayDate = "Jan 2, 2006"

// Render builds the subject and HTML body of an alert.
func Render(in RenderInput) (Message, error) {
	over := OverBudget(in.Threshold)
	diff := in.Budget - in.CurrentTotal
	if over {
		diff = in.CurrentTotal - in.Budget
	}

	frontend := strings.TrimRight(in.FrontendURL, "/")
	if frontend == "" {
		frontend = DefaultFrontendURL
	}
	desc := in.Expense.Description
	if desc == "" {
		desc = "No description"
	}

	data := templateData{
		Over:         over,
		Percent:      Percent(in.Threshold),
		Currency:     in.Currency,
		Budget:       money(in.Budget),
		CurrentTotal: money(in.CurrentTotal),
		Difference:   money(diff),
		Title:        in.Expense.Title,
		Description:  desc,
		Amount:       money(in.Expense.BaseAmount),
		Date:         in.Expense.Date.Format(displayDate),
		PeriodStart:  in.PeriodStart.Format(displayDate),
		PeriodEnd:    in.PeriodEnd.Format(displayDate),
		Cycle:        in.ResetCycle.Title(),
		DashboardURL: frontend + "/dashboard/budget",
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render alert: %w", err)
	}
	return Message{Subject: Subject(in.Threshold, in.ResetCycle), Body: buf.String()}, nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
