package config

import "time"

// Config is the root configuration of the pennywise budget service.
type Config struct {
	// Server configures the HTTP API listener.
	Server ServerConfig `yaml:"server"`

	// Database configures the SQLite ledger and preference store.
	Database DatabaseConfig `yaml:"database"`

	// Cache configures the budget period cache backend.
	Cache CacheConfig `yaml:"cache"`

	// Queue configures the durable alert job queue and its workers.
	Queue QueueConfig `yaml:"queue"`

	// Alerts configures threshold alert rendering and delivery limits.
	Alerts AlertsConfig `yaml:"alerts"`

	// Rates configures the exchange rate providers.
	Rates RatesConfig `yaml:"rates"`

	// Mail configures the SMTP transport for alert emails.
	Mail MailConfig `yaml:"mail"`

	// Auth configures bearer token validation and admin API keys.
	Auth AuthConfig `yaml:"auth"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Janitor configures scheduled maintenance.
	Janitor JanitorConfig `yaml:"janitor"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds a single API request.
	// Default: 15s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS configures cross-origin requests from the dashboard.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	MaxAge           int      `yaml:"max_age"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// DatabaseConfig contains configuration for the SQLite database.
type DatabaseConfig struct {
	// Path is the database file.
	// Default: "data/pennywise.db"
	Path string `yaml:"path"`

	// MaxOpenConns limits open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// LogQueries logs every SQL statement at debug level.
	LogQueries bool `yaml:"log_queries"`

	// SlowThreshold logs statements slower than this at warn level.
	// Default: 200ms
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// CacheConfig contains configuration for the budget cache.
type CacheConfig struct {
	// Backend is "memory", "redis" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Grace is added to the natural period end when computing entry TTLs.
	// Default: 24h
	Grace time.Duration `yaml:"grace"`

	// MinTTL is the smallest TTL an entry is stored with.
	// Default: 60s
	MinTTL time.Duration `yaml:"min_ttl"`

	// CleanupInterval is how often the memory backend drops expired keys.
	// Default: 1m
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	Redis  RedisConfig       `yaml:"redis"`
	SQLite SQLiteCacheConfig `yaml:"sqlite"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	// Default: "127.0.0.1:6379"
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// SQLiteCacheConfig contains settings of the SQLite cache backend.
type SQLiteCacheConfig struct {
	// Path is the cache database file.
	// Default: "data/cache.db"
	Path               string        `yaml:"path"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	BusyTimeout        time.Duration `yaml:"busy_timeout"`
}

// QueueConfig contains configuration for the alert job queue.
type QueueConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the queue database file.
	// Default: "data/queue.db"
	Path string `yaml:"path"`

	// Concurrency is the number of jobs processed in parallel.
	// Default: 5
	Concurrency int `yaml:"concurrency"`

	// PollInterval is how long idle workers wait before polling.
	// Default: 500ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// JobTimeout bounds one handler invocation.
	// Default: 30s
	JobTimeout time.Duration `yaml:"job_timeout"`

	// KeepCompleted and KeepFailed bound retained finished jobs.
	// Default: 100 and 50
	KeepCompleted int `yaml:"keep_completed"`
	KeepFailed    int `yaml:"keep_failed"`

	// EnqueueTimeout bounds one enqueue call.
	// Default: 5s
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AlertsConfig contains configuration for threshold alerts.
type AlertsConfig struct {
	// DailyEmailLimit caps alert emails per user per day.
	// Default: 10
	DailyEmailLimit int `yaml:"daily_email_limit"`

	// FrontendURL is the dashboard root linked from emails.
	// Default: "http://localhost:5173"
	FrontendURL string `yaml:"frontend_url"`
}

// RatesConfig contains configuration for exchange rate lookups.
type RatesConfig struct {
	PrimaryURL  string `yaml:"primary_url"`
	FallbackURL string `yaml:"fallback_url"`

	// Timeout bounds a single provider request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is the number of tries per provider.
	// Default: 2
	MaxAttempts int `yaml:"max_attempts"`

	// RetryInterval is the initial delay between tries.
	// Default: 500ms
	RetryInterval time.Duration `yaml:"retry_interval"`

	// CacheTTL is how long a fetched table is reused.
	// Default: 1h
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MailConfig contains configuration for the SMTP transport. When disabled,
// alerts are logged instead of sent.
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// AuthConfig contains configuration for request authentication.
type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer"`

	// AdminAPIKeys are accepted on /admin routes.
	AdminAPIKeys []string `yaml:"admin_api_keys"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks emails, bearer tokens and passwords in log values.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "pennywise"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "pennywise"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of traces sampled.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`
}

// JanitorConfig contains configuration for scheduled maintenance.
type JanitorConfig struct {
	// Enabled runs the janitor in the API and worker processes.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// SweepSchedule is the cron schedule for purging expired cache keys.
	// Default: "*/15 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// QueueCleanSchedule is the cron schedule for removing old jobs.
	// Default: "0 3 * * *"
	QueueCleanSchedule string `yaml:"queue_clean_schedule"`

	// QueueCleanGrace is the minimum age of removed finished jobs.
	// Default: 168h
	QueueCleanGrace time.Duration `yaml:"queue_clean_grace"`
}
