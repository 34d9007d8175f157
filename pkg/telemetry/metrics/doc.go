// Package metrics provides Prometheus metrics for the budget service.
//
// # Metrics Categories
//
//   - HTTP: request count and latency by route
//   - Cache: budget cache hits, misses and corrupt entries
//   - Jobs: alert job attempts, handler latency and queue depth
//   - Budget: expense adds and threshold alerts
//   - Rates: exchange rate lookups by provider
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	budgetCache := cache.New(store, cache.WithMetrics(collector))
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// The Collector satisfies the small Metrics interfaces declared by the
// cache, queue, rates, alerts and expense packages, so those packages never
// import Prometheus directly.
//
// # Cardinality
//
// Route labels pass through a CardinalityLimiter; values past the limit
// are reported as "other".
package metrics
