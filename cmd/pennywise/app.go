package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"pennywise-hq/budgetd/pkg/alerts"
	"pennywise-hq/budgetd/pkg/budget"
	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/cli"
	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/database"
	"pennywise-hq/budgetd/pkg/expense"
	"pennywise-hq/budgetd/pkg/janitor"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/mail"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/queue"
	"pennywise-hq/budgetd/pkg/rates"
	"pennywise-hq/budgetd/pkg/telemetry/health"
	"pennywise-hq/budgetd/pkg/telemetry/logging"
	"pennywise-hq/budgetd/pkg/telemetry/metrics"
)

// app holds the components shared by the run and worker commands. Fields
// are nil until the matching open method has been called.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Collector

	db    *gorm.DB
	store kv.Store
	queue queue.Queue

	ledger      ledger.Store
	preferences preference.Store
	cache       *cache.BudgetCache
	expenses    *expense.Service

	closers []func() error
}

// loadConfig initializes the global configuration and applies the
// --verbose flag.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()

	config.OnReload(func(c *config.Config) {
		if err := logger.SetLevel(c.Telemetry.Logging.Level); err != nil {
			slog.Warn("ignoring reloaded log level", "error", err)
		}
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
	}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the configured key-value backend.
func (a *app) openStore(ctx context.Context) (kv.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	c := a.cfg.Cache

	var store kv.Store
	switch c.Backend {
	case "memory":
		store = kv.NewMemoryStoreWithConfig(kv.MemoryStoreConfig{CleanupInterval: c.CleanupInterval})
	case "redis":
		store = kv.NewRedisStore(kv.RedisStoreConfig{
			Addr:        c.Redis.Addr,
			Password:    c.Redis.Password,
			DB:          c.Redis.DB,
			DialTimeout: c.Redis.DialTimeout,
		})
	case "sqlite":
		s, err := kv.NewSQLiteStoreWithConfig(kv.SQLiteStoreConfig{
			Path:               c.SQLite.Path,
			CheckpointInterval: c.SQLite.CheckpointInterval,
			BusyTimeout:        c.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache store: %w", err)
		}
		store = s
	default:
		return nil, cli.NewConfigError("cache.backend", fmt.Sprintf("unsupported backend %q", c.Backend))
	}
	a.onClose(store.Close)

	if err := store.Ping(ctx); err != nil {
		// The cache is advisory: a down store degrades to ledger reads.
		slog.Warn("cache store unreachable, totals will be recomputed", "backend", c.Backend, "error", err)
	}
	a.store = store
	slog.Info("cache store opened", "backend", c.Backend)
	return store, nil
}

// openQueue opens the configured alert queue backend.
func (a *app) openQueue() (queue.Queue, error) {
	if a.queue != nil {
		return a.queue, nil
	}
	qc := a.cfg.Queue

	var q queue.Queue
	switch qc.Backend {
	case "sqlite":
		sq, err := queue.NewSQLiteQueueWithConfig(queue.SQLiteQueueConfig{
			Path:        qc.Path,
			BusyTimeout: qc.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open alert queue: %w", err)
		}
		q = sq
	case "memory":
		q = queue.NewMemoryQueue(time.Now)
	default:
		return nil, cli.NewConfigError("queue.backend", fmt.Sprintf("unsupported backend %q", qc.Backend))
	}
	a.onClose(q.Close)
	a.queue = q
	slog.Info("alert queue opened", "backend", qc.Backend)
	return q, nil
}

// openStores opens the database and the ledger and preference stores.
func (a *app) openStores() error {
	if a.db != nil {
		return nil
	}
	dc := a.cfg.Database
	db, err := database.Open(database.Config{
		Path:          dc.Path,
		MaxOpenConns:  dc.MaxOpenConns,
		LogQueries:    dc.LogQueries,
		SlowThreshold: dc.SlowThreshold,
	})
	if err != nil {
		return err
	}
	a.onClose(func() error { return database.Close(db) })

	ledgerStore, err := ledger.NewGormStore(db)
	if err != nil {
		return err
	}
	prefStore, err := preference.NewGormStore(db)
	if err != nil {
		return err
	}

	a.db = db
	a.ledger = ledgerStore
	a.preferences = prefStore
	slog.Info("database opened", "path", dc.Path)
	return nil
}

// buildExpenses wires the expense service: ledger, cache, aggregator,
// exchange rates and the alert engine.
func (a *app) buildExpenses(ctx context.Context) (*expense.Service, error) {
	if a.expenses != nil {
		return a.expenses, nil
	}
	if err := a.openStores(); err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	q, err := a.openQueue()
	if err != nil {
		return nil, err
	}

	a.cache = cache.New(store,
		cache.WithGrace(a.cfg.Cache.Grace),
		cache.WithMinTTL(a.cfg.Cache.MinTTL),
		cache.WithMetrics(a.metrics),
	)
	agg := budget.NewAggregator(a.ledger, a.cache, time.Now)

	rc := a.cfg.Rates
	rater := rates.NewClient(rates.Config{
		PrimaryURL:    rc.PrimaryURL,
		FallbackURL:   rc.FallbackURL,
		Timeout:       rc.Timeout,
		MaxAttempts:   uint(rc.MaxAttempts),
		RetryInterval: rc.RetryInterval,
		CacheTTL:      rc.CacheTTL,
		Metrics:       a.metrics,
	})

	engine := alerts.NewEngine(q, a.preferences, alerts.EngineConfig{
		EnqueueTimeout: a.cfg.Queue.EnqueueTimeout,
		FrontendURL:    a.cfg.Alerts.FrontendURL,
		Metrics:        a.metrics,
	})

	a.expenses = expense.NewService(expense.Deps{
		Ledger:      a.ledger,
		Preferences: a.preferences,
		Cache:       a.cache,
		Aggregator:  agg,
		Rates:       rater,
		Alerts:      engine,
		Metrics:     a.metrics,
	})
	return a.expenses, nil
}

// newSender returns the SMTP sender, or a logging sender when mail is
// disabled.
func (a *app) newSender() (mail.Sender, error) {
	mc := a.cfg.Mail
	if !mc.Enabled {
		slog.Warn("mail disabled, alert emails will only be logged")
		return mail.NewLogSender(), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     mc.Host,
		Port:     mc.Port,
		Username: mc.Username,
		Password: mc.Password,
		From:     mc.From,
		FromName: mc.FromName,
	})
}

// buildWorker creates the alert worker with the budget-alert handler.
func (a *app) buildWorker(ctx context.Context) (*queue.Worker, error) {
	q, err := a.openQueue()
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	sender, err := a.newSender()
	if err != nil {
		return nil, cli.NewConfigError("mail", err.Error())
	}

	qc := a.cfg.Queue
	w := queue.NewWorker(q, queue.WorkerConfig{
		Concurrency:   qc.Concurrency,
		PollInterval:  qc.PollInterval,
		JobTimeout:    qc.JobTimeout,
		KeepCompleted: qc.KeepCompleted,
		KeepFailed:    qc.KeepFailed,
		Metrics:       a.metrics,
	})
	alerts.NewDelivery(sender, store, a.cfg.Alerts.DailyEmailLimit).Register(w)
	return w, nil
}

// startJanitor schedules cache sweeps and queue cleanup when enabled.
func (a *app) startJanitor(ctx context.Context) {
	if !a.cfg.Janitor.Enabled {
		return
	}
	var sweeper kv.Sweeper
	if s, ok := a.store.(kv.Sweeper); ok {
		sweeper = s
	}
	var cleaner janitor.Cleaner
	if a.queue != nil {
		cleaner = a.queue
	}
	j := janitor.New(a.cfg.Janitor, sweeper, cleaner)
	if err := j.Start(ctx); err != nil {
		slog.Warn("failed to start janitor", "error", err)
		return
	}
	if next := j.NextRun(); next != nil {
		slog.Debug("janitor scheduled", "next_run", next)
	}
}

// watchQueueDepth publishes queue counts to the metrics collector until ctx
// is cancelled.
func (a *app) watchQueueDepth(ctx context.Context, every time.Duration) {
	if a.queue == nil || !a.cfg.Telemetry.Metrics.Enabled {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s, err := a.queue.Stats(ctx)
				if err != nil {
					slog.Debug("queue stats unavailable", "error", err)
					continue
				}
				a.metrics.UpdateQueueDepth(s)
			}
		}
	}()
}

// healthChecker registers readiness checks for every opened component.
func (a *app) healthChecker() *health.Checker {
	c := health.New(0)
	if a.db != nil {
		db := a.db
		c.RegisterCheck("database", func(ctx context.Context) error { return database.Ping(ctx, db) })
	}
	if a.store != nil {
		c.RegisterCheck("cache", health.PingCheck(a.store))
	}
	if a.queue != nil {
		c.RegisterCheck("queue", health.QueueCheck(a.queue, 0))
	}
	return c
}

// watchConfig reloads the configuration file on change until ctx is
// cancelled. Nothing is watched when running on defaults.
func watchConfig(ctx context.Context) {
	if cfgFile == "" {
		return
	}
	w, err := config.NewWatcher(cfgFile, config.DefaultDebounce)
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Error("config watcher exited", "error", err)
		}
	}()
}
