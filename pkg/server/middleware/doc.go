// Package middleware provides the net/http middleware chain of the API
// server: request IDs, access logging, panic recovery, CORS, request
// timeouts, body limits, bearer-token identity and admin API keys.
//
// Middleware is applied outermost first:
//
//	handler = middleware.Recovery(handler)
//	handler = middleware.Logging(metrics)(handler)
//	handler = middleware.RequestID(handler)
package middleware
