package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"pennywise-hq/budgetd/pkg/config"
)

// CacheMetrics tracks budget cache behaviour.
//
// Metrics:
//   - pennywise_budget_cache_operations_total: operations by op and result
type CacheMetrics struct {
	operations *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "budget_cache_operations_total",
				Help:      "Budget cache operations by operation and result",
			},
			[]string{"op", "result"},
		),
	}
	registry.MustRegister(cm.operations)
	return cm
}

// Record counts one operation.
func (cm *CacheMetrics) Record(op, result string) {
	cm.operations.WithLabelValues(op, result).Inc()
}
