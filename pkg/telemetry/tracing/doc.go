// Package tracing configures OpenTelemetry for the service.
//
// New installs a global TracerProvider exporting to an OTLP/gRPC
// collector. Instrumented packages call otel.Tracer("pennywise/<pkg>")
// and pick the provider up from the global, so nothing else needs to be
// passed around. HTTPMiddleware starts one server span per API request.
package tracing
