package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateAlerts(&cfg.Alerts)...)
	errs = append(errs, validateRates(&cfg.Rates)...)
	errs = append(errs, validateMail(&cfg.Mail)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateJanitor(&cfg.Janitor)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid address %q: %v", s.ListenAddress, err)})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, FieldError{"server.request_timeout", "must not be negative"})
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{"server.max_body_bytes", "must not be negative"})
	}
	for _, origin := range s.CORS.AllowedOrigins {
		if origin == "*" {
			if s.CORS.AllowCredentials {
				errs = append(errs, FieldError{"server.cors.allowed_origins", "wildcard origin cannot be combined with allow_credentials"})
			}
			continue
		}
		if err := validateURL(origin); err != nil {
			errs = append(errs, FieldError{"server.cors.allowed_origins", err.Error()})
		}
	}
	return errs
}

func validateDatabase(d *DatabaseConfig) []FieldError {
	var errs []FieldError
	if d.Path == "" {
		errs = append(errs, FieldError{"database.path", "is required"})
	}
	if d.MaxOpenConns < 0 {
		errs = append(errs, FieldError{"database.max_open_conns", "must not be negative"})
	}
	return errs
}

func validateCache(c *CacheConfig) []FieldError {
	var errs []FieldError
	switch c.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, FieldError{"cache.redis.addr", "is required for the redis backend"})
		}
		if c.Redis.DB < 0 {
			errs = append(errs, FieldError{"cache.redis.db", "must not be negative"})
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			errs = append(errs, FieldError{"cache.sqlite.path", "is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"cache.backend", fmt.Sprintf("must be memory, redis or sqlite, got %q", c.Backend)})
	}
	if c.Grace < 0 {
		errs = append(errs, FieldError{"cache.grace", "must not be negative"})
	}
	if c.MinTTL < 0 {
		errs = append(errs, FieldError{"cache.min_ttl", "must not be negative"})
	}
	return errs
}

func validateQueue(q *QueueConfig) []FieldError {
	var errs []FieldError
	switch q.Backend {
	case "memory":
	case "sqlite":
		if q.Path == "" {
			errs = append(errs, FieldError{"queue.path", "is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"queue.backend", fmt.Sprintf("must be sqlite or memory, got %q", q.Backend)})
	}
	if q.Concurrency < 1 {
		errs = append(errs, FieldError{"queue.concurrency", "must be at least 1"})
	}
	if q.KeepCompleted < 0 || q.KeepFailed < 0 {
		errs = append(errs, FieldError{"queue.keep_completed", "retention counts must not be negative"})
	}
	if q.EnqueueTimeout < 0 {
		errs = append(errs, FieldError{"queue.enqueue_timeout", "must not be negative"})
	}
	return errs
}

func validateAlerts(a *AlertsConfig) []FieldError {
	var errs []FieldError
	if a.DailyEmailLimit < 1 {
		errs = append(errs, FieldError{"alerts.daily_email_limit", "must be at least 1"})
	}
	if err := validateURL(a.FrontendURL); err != nil {
		errs = append(errs, FieldError{"alerts.frontend_url", err.Error()})
	}
	return errs
}

func validateRates(r *RatesConfig) []FieldError {
	var errs []FieldError
	if err := validateURL(r.PrimaryURL); err != nil {
		errs = append(errs, FieldError{"rates.primary_url", err.Error()})
	}
	if r.FallbackURL != "" {
		if err := validateURL(r.FallbackURL); err != nil {
			errs = append(errs, FieldError{"rates.fallback_url", err.Error()})
		}
	}
	if r.Timeout < 0 {
		errs = append(errs, FieldError{"rates.timeout", "must not be negative"})
	}
	if r.MaxAttempts < 1 {
		errs = append(errs, FieldError{"rates.max_attempts", "must be at least 1"})
	}
	return errs
}

func validateMail(m *MailConfig) []FieldError {
	if !m.Enabled {
		return nil
	}
	var errs []FieldError
	if m.Host == "" {
		errs = append(errs, FieldError{"mail.host", "is required when mail is enabled"})
	}
	if m.Port < 1 || m.Port > 65535 {
		errs = append(errs, FieldError{"mail.port", fmt.Sprintf("must be between 1 and 65535, got %d", m.Port)})
	}
	if m.From == "" {
		errs = append(errs, FieldError{"mail.from", "is required when mail is enabled"})
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(t.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", t.Logging.Level)})
	}
	switch strings.ToLower(t.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("must be json or text, got %q", t.Logging.Format)})
	}
	for i, p := range t.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i), "is required"})
		}
	}
	if t.Metrics.Enabled && !strings.HasPrefix(t.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}
	if t.Tracing.SampleRatio < 0 || t.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{"telemetry.tracing.sample_ratio", "must be between 0 and 1"})
	}
	if t.Tracing.Enabled && t.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{"telemetry.tracing.endpoint", "is required when tracing is enabled"})
	}
	return errs
}

func validateJanitor(j *JanitorConfig) []FieldError {
	if !j.Enabled {
		return nil
	}
	var errs []FieldError
	if _, err := cron.ParseStandard(j.SweepSchedule); err != nil {
		errs = append(errs, FieldError{"janitor.sweep_schedule", err.Error()})
	}
	if _, err := cron.ParseStandard(j.QueueCleanSchedule); err != nil {
		errs = append(errs, FieldError{"janitor.queue_clean_schedule", err.Error()})
	}
	if j.QueueCleanGrace < 0 {
		errs = append(errs, FieldError{"janitor.queue_clean_grace", "must not be negative"})
	}
	return errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
