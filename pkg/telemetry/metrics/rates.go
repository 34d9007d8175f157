package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"pennywise-hq/budgetd/pkg/config"
)

// RateMetrics tracks exchange rate lookups.
//
// Metrics:
//   - pennywise_rate_lookups_total: lookups by provider and outcome
type RateMetrics struct {
	lookupsTotal *prometheus.CounterVec
}

// NewRateMetrics creates and registers rate metrics.
func NewRateMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RateMetrics {
	m := &RateMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rate_lookups_total",
				Help:      "Exchange rate lookups by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}
	registry.MustRegister(m.lookupsTotal)
	return m
}

// Record counts one lookup.
func (m *RateMetrics) Record(provider, outcome string) {
	m.lookupsTotal.WithLabelValues(provider, outcome).Inc()
}
