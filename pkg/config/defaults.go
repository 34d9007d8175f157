package config

import (
	"time"

	"pennywise-hq/budgetd/pkg/rates"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 15 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = 1 << 20
	DefaultCORSMaxAge      = 3600

	// Database defaults
	DefaultDatabasePath          = "data/pennywise.db"
	DefaultDatabaseMaxOpenConns  = 1
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond

	// Cache defaults
	DefaultCacheBackend         = "memory"
	DefaultCacheGrace           = 24 * time.Hour
	DefaultCacheMinTTL          = 60 * time.Second
	DefaultCacheCleanupInterval = time.Minute
	DefaultRedisAddr            = "127.0.0.1:6379"
	DefaultRedisDialTimeout     = 5 * time.Second
	DefaultCacheSQLitePath      = "data/cache.db"
	DefaultCacheCheckpoint      = 5 * time.Minute
	DefaultSQLiteBusyTimeout    = 5 * time.Second

	// Queue defaults
	DefaultQueueBackend        = "sqlite"
	DefaultQueuePath           = "data/queue.db"
	DefaultQueueConcurrency    = 5
	DefaultQueuePollInterval   = 500 * time.Millisecond
	DefaultQueueJobTimeout     = 30 * time.Second
	DefaultQueueKeepCompleted  = 100
	DefaultQueueKeepFailed     = 50
	DefaultQueueEnqueueTimeout = 5 * time.Second

	// Alert defaults
	DefaultDailyEmailLimit = 10
	DefaultFrontendURL     = "http://localhost:5173"

	// Rates defaults
	DefaultRatesTimeout       = 10 * time.Second
	DefaultRatesMaxAttempts   = 2
	DefaultRatesRetryInterval = 500 * time.Millisecond
	DefaultRatesCacheTTL      = time.Hour

	// Mail defaults
	DefaultMailPort     = 587
	DefaultMailFromName = "Pennywise"

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "pennywise"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "pennywise"
	DefaultTracingSampleRatio = 1.0

	// Janitor defaults
	DefaultSweepSchedule      = "*/15 * * * *"
	DefaultQueueCleanSchedule = "0 3 * * *"
	DefaultQueueCleanGrace    = 7 * 24 * time.Hour
)

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{CORS: CORSConfig{Enabled: true}},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: true},
			Metrics: MetricsConfig{Enabled: true},
		},
		Janitor: JanitorConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans are
// left as parsed.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyCacheDefaults(&cfg.Cache)
	applyQueueDefaults(&cfg.Queue)
	applyAlertsDefaults(&cfg.Alerts)
	applyRatesDefaults(&cfg.Rates)
	applyMailDefaults(&cfg.Mail)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyJanitorDefaults(&cfg.Janitor)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = []string{DefaultFrontendURL}
	}
	if len(s.CORS.AllowedMethods) == 0 {
		s.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(s.CORS.AllowedHeaders) == 0 {
		s.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if s.CORS.MaxAge == 0 {
		s.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Path == "" {
		d.Path = DefaultDatabasePath
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = DefaultDatabaseMaxOpenConns
	}
	if d.SlowThreshold == 0 {
		d.SlowThreshold = DefaultDatabaseSlowThreshold
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Backend == "" {
		c.Backend = DefaultCacheBackend
	}
	if c.Grace == 0 {
		c.Grace = DefaultCacheGrace
	}
	if c.MinTTL == 0 {
		c.MinTTL = DefaultCacheMinTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCacheCleanupInterval
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = DefaultCacheSQLitePath
	}
	if c.SQLite.CheckpointInterval == 0 {
		c.SQLite.CheckpointInterval = DefaultCacheCheckpoint
	}
	if c.SQLite.BusyTimeout == 0 {
		c.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}

func applyQueueDefaults(q *QueueConfig) {
	if q.Backend == "" {
		q.Backend = DefaultQueueBackend
	}
	if q.Path == "" {
		q.Path = DefaultQueuePath
	}
	if q.Concurrency == 0 {
		q.Concurrency = DefaultQueueConcurrency
	}
	if q.PollInterval == 0 {
		q.PollInterval = DefaultQueuePollInterval
	}
	if q.JobTimeout == 0 {
		q.JobTimeout = DefaultQueueJobTimeout
	}
	if q.KeepCompleted == 0 {
		q.KeepCompleted = DefaultQueueKeepCompleted
	}
	if q.KeepFailed == 0 {
		q.KeepFailed = DefaultQueueKeepFailed
	}
	if q.EnqueueTimeout == 0 {
		q.EnqueueTimeout = DefaultQueueEnqueueTimeout
	}
	if q.BusyTimeout == 0 {
		q.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}

func applyAlertsDefaults(a *AlertsConfig) {
	if a.DailyEmailLimit == 0 {
		a.DailyEmailLimit = DefaultDailyEmailLimit
	}
	if a.FrontendURL == "" {
		a.FrontendURL = DefaultFrontendURL
	}
}

func applyRatesDefaults(r *RatesConfig) {
	if r.PrimaryURL == "" {
		r.PrimaryURL = rates.DefaultPrimaryURL
	}
	if r.FallbackURL == "" {
		r.FallbackURL = rates.DefaultFallbackURL
	}
	if r.Timeout == 0 {
		r.Timeout = DefaultRatesTimeout
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultRatesMaxAttempts
	}
	if r.RetryInterval == 0 {
		r.RetryInterval = DefaultRatesRetryInterval
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = DefaultRatesCacheTTL
	}
}

func applyMailDefaults(m *MailConfig) {
	if m.Port == 0 {
		m.Port = DefaultMailPort
	}
	if m.FromName == "" {
		m.FromName = DefaultMailFromName
	}
	if m.From == "" {
		m.From = m.Username
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}

func applyJanitorDefaults(j *JanitorConfig) {
	if j.SweepSchedule == "" {
		j.SweepSchedule = DefaultSweepSchedule
	}
	if j.QueueCleanSchedule == "" {
		j.QueueCleanSchedule = DefaultQueueCleanSchedule
	}
	if j.QueueCleanGrace == 0 {
		j.QueueCleanGrace = DefaultQueueCleanGrace
	}
}
