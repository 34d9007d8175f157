// Package server provides the HTTP API of the budget service.
//
// User routes under /api require an HS256 bearer token; admin routes under
// /admin require one of the configured API keys. Health, readiness,
// version and Prometheus endpoints are unauthenticated.
//
// The middleware chain, outermost first, is recovery, request ID, access
// logging, tracing (when enabled), CORS, request timeout and body limit.
package server
