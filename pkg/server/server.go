package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/server/handlers"
	"pennywise-hq/budgetd/pkg/server/middleware"
	"pennywise-hq/budgetd/pkg/telemetry/health"
	"pennywise-hq/budgetd/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary on /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// MetricsCollector serves /metrics and records request metrics.
type MetricsCollector interface {
	middleware.HTTPMetrics
	Handler() http.Handler
}

// Deps are the collaborators of a Server.
type Deps struct {
	Expenses handlers.ExpenseService
	Cache    handlers.CacheClearer
	Queue    handlers.QueueAdmin
	Checker  *health.Checker
	// Metrics may be nil.
	Metrics MetricsCollector
	Build   BuildInfo
}

// Server is the HTTP API server.
type Server struct {
	cfg          *config.Config
	deps         Deps
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a Server.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Checker == nil {
		deps.Checker = health.New(0)
	}
	return &Server{cfg: cfg, deps: deps}
}

// Start serves until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.isRunning = true
	sc := s.cfg.Server
	s.httpServer = &http.Server{
		Addr:           sc.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		IdleTimeout:    sc.IdleTimeout,
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting API server", "address", sc.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errCh:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the server within ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.mu.Unlock()
		if !running {
			return
		}

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		slog.Info("API server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = middleware.BodyLimit(s.cfg.Server.MaxBodyBytes)(h)
	h = middleware.Timeout(s.cfg.Server.RequestTimeout)(h)
	h = middleware.CORS(s.cfg.Server.CORS)(h)
	if s.cfg.Telemetry.Tracing.Enabled {
		h = tracing.HTTPMiddleware(h)
	}
	var metrics middleware.HTTPMetrics
	if s.deps.Metrics != nil {
		metrics = s.deps.Metrics
	}
	h = middleware.Logging(metrics)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(h)
	return h
}

func (s *Server) routes(mux *http.ServeMux) {
	exp := handlers.NewExpenses(s.deps.Expenses)
	user := middleware.Authenticate(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer)

	handle(mux, "POST /api/expenses", user, exp.Create)
	handle(mux, "GET /api/expenses", user, exp.List)
	handle(mux, "GET /api/expenses/totals", user, exp.Totals)
	handle(mux, "GET /api/expenses/export", user, exp.Export)
	handle(mux, "PUT /api/expenses/{id}", user, exp.Update)
	handle(mux, "DELETE /api/expenses/{id}", user, exp.Delete)
	handle(mux, "GET /api/preferences", user, exp.GetPreference)
	handle(mux, "PUT /api/preferences", user, exp.PutPreference)

	admin := handlers.NewAdmin(s.deps.Cache, s.deps.Queue, s.deps.Checker)
	key := middleware.AdminAPIKey(s.cfg.Auth.AdminAPIKeys)

	handle(mux, "GET /admin/health", key, admin.Health)
	handle(mux, "GET /admin/queue/stats", key, admin.QueueStats)
	handle(mux, "POST /admin/cache/clear", key, admin.ClearCache)
	handle(mux, "POST /admin/queue/retry", key, admin.RetryFailed)
	handle(mux, "POST /admin/queue/clean", key, admin.Clean)

	b := s.deps.Build
	s.deps.Checker.Register(mux, b.Version, b.Commit, b.BuildTime)

	if s.deps.Metrics != nil && s.cfg.Telemetry.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}
}

// handle registers fn behind mw and records the matched pattern for the
// access log.
func handle(mux *http.ServeMux, pattern string, mw func(http.Handler) http.Handler, fn http.HandlerFunc) {
	wrapped := mw(fn)
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r.Context(), pattern)
		wrapped.ServeHTTP(w, r)
	}))
}
