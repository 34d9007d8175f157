package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/queue"
)

// Collector owns every Prometheus metric of the service. It satisfies the
// Metrics interfaces of the cache, queue, rates, alerts and expense
// packages, so one instance is passed to all of them.
//
// All Record methods are no-ops when metrics are disabled.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	http   *HTTPMetrics
	cache  *CacheMetrics
	jobs   *JobMetrics
	budget *BudgetMetrics
	rates  *RateMetrics

	// routes bounds the number of distinct route labels.
	routes *CardinalityLimiter
}

// NewCollector creates a Collector. If registry is nil, a new registry is
// created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		http:     NewHTTPMetrics(cfg, registry),
		cache:    NewCacheMetrics(cfg, registry),
		jobs:     NewJobMetrics(cfg, registry),
		budget:   NewBudgetMetrics(cfg, registry),
		rates:    NewRateMetrics(cfg, registry),
		routes:   NewCardinalityLimiter(200),
	}
}

// RecordHTTPRequest records one served API request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if !c.routes.Allow(route) {
		route = "other"
	}
	c.http.Record(method, route, strconv.Itoa(status), duration)
}

// RecordCacheResult records a budget cache operation outcome.
//
// Parameters:
//   - op: "get", "set", "increment" or "invalidate"
//   - result: "hit", "miss", "corrupt", "error" or "ok"
func (c *Collector) RecordCacheResult(op, result string) {
	if !c.config.Enabled {
		return
	}
	c.cache.Record(op, result)
}

// RecordJob records a finished job attempt.
func (c *Collector) RecordJob(name, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.jobs.Record(name, outcome, duration)
}

// UpdateQueueDepth publishes queue counts by status.
func (c *Collector) UpdateQueueDepth(s queue.Stats) {
	if !c.config.Enabled {
		return
	}
	c.jobs.UpdateDepth(s)
}

// RecordExpense records an expense add outcome ("created" or "rejected").
func (c *Collector) RecordExpense(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.budget.RecordExpense(outcome)
}

// RecordAlert records a threshold alert outcome.
func (c *Collector) RecordAlert(threshold float64, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.budget.RecordAlert(threshold, outcome)
}

// RecordRateLookup records an exchange rate lookup by provider.
func (c *Collector) RecordRateLookup(provider, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.rates.Record(provider, outcome)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter accepting up to maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already known or still fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
