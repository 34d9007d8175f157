package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HTTPMetrics records served requests.
type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

type routeKey struct{}

type route struct{ pattern string }

// SetRoute records the matched route pattern for the access log and
// metrics. It is a no-op outside Logging.
func SetRoute(ctx context.Context, pattern string) {
	if rt, ok := ctx.Value(routeKey{}).(*route); ok {
		rt.pattern = pattern
	}
}

// Logging logs each completed request at a level chosen by status and
// reports it to metrics, which may be nil. The route label is whatever
// SetRoute recorded, or "unmatched".
func Logging(metrics HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			rt := &route{}

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), routeKey{}, rt)))

			elapsed := time.Since(start)
			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}
			slog.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", elapsed.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)

			if metrics != nil {
				pattern := rt.pattern
				if pattern == "" {
					pattern = "unmatched"
				}
				metrics.RecordHTTPRequest(r.Method, pattern, rw.statusCode, elapsed)
			}
		})
	}
}
