package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"pennywise-hq/budgetd/pkg/config"
)

// BudgetMetrics tracks expense writes and threshold alerts.
//
// Metrics:
//   - pennywise_expenses_total: expense adds by outcome
//   - pennywise_alerts_total: alerts by threshold and outcome
type BudgetMetrics struct {
	expensesTotal *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
}

// NewBudgetMetrics creates and registers budget metrics.
func NewBudgetMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BudgetMetrics {
	m := &BudgetMetrics{
		expensesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "expenses_total",
				Help:      "Expense adds by outcome",
			},
			[]string{"outcome"},
		),
		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "alerts_total",
				Help:      "Budget threshold alerts by threshold and outcome",
			},
			[]string{"threshold", "outcome"},
		),
	}
	registry.MustRegister(m.expensesTotal, m.alertsTotal)
	return m
}

// RecordExpense counts one expense add.
func (m *BudgetMetrics) RecordExpense(outcome string) {
	m.expensesTotal.WithLabelValues(outcome).Inc()
}

// RecordAlert counts one alert.
func (m *BudgetMetrics) RecordAlert(threshold float64, outcome string) {
	m.alertsTotal.WithLabelValues(strconv.FormatFloat(threshold, 'f', -1, 64), outcome).Inc()
}
