// Package telemetry groups the service's observability packages.
//
//   - logging: log/slog setup with context fields and PII redaction
//   - metrics: Prometheus collector shared by the domain packages
//   - tracing: OpenTelemetry provider and HTTP span middleware
//   - health: liveness, readiness and version endpoints
package telemetry
