package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PENNYWISE_"

// LoadConfig loads configuration from a YAML file at path, applies defaults
// and validates the result. An empty path yields the defaults. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named PENNYWISE_SECTION_FIELD (for example
// PENNYWISE_CACHE_BACKEND). A .env file next to the configuration file, or in
// the working directory, is loaded first; it never replaces variables that
// are already set.
//
// The loading sequence is:
// 1. Load .env files
// 2. Load YAML from file and apply defaults
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := LoadDotEnv(dotEnvCandidates(path)...); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads each existing file into the process environment. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func dotEnvCandidates(configPath string) []string {
	candidates := []string{".env"}
	if configPath != "" {
		dir := filepath.Dir(configPath)
		if p := filepath.Join(dir, ".env"); filepath.Clean(p) != ".env" {
			candidates = append([]string{p}, candidates...)
		}
	}
	return candidates
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envList("SERVER_CORS_ALLOWED_ORIGINS", &cfg.Server.CORS.AllowedOrigins)

	// Database overrides
	envString("DATABASE_PATH", &cfg.Database.Path)
	envBool("DATABASE_LOG_QUERIES", &cfg.Database.LogQueries)

	// Cache overrides
	envString("CACHE_BACKEND", &cfg.Cache.Backend)
	envDuration("CACHE_GRACE", &cfg.Cache.Grace)
	envDuration("CACHE_MIN_TTL", &cfg.Cache.MinTTL)
	envString("CACHE_REDIS_ADDR", &cfg.Cache.Redis.Addr)
	envString("CACHE_REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	envInt("CACHE_REDIS_DB", &cfg.Cache.Redis.DB)
	envString("CACHE_SQLITE_PATH", &cfg.Cache.SQLite.Path)

	// Queue overrides
	envString("QUEUE_BACKEND", &cfg.Queue.Backend)
	envString("QUEUE_PATH", &cfg.Queue.Path)
	envInt("QUEUE_CONCURRENCY", &cfg.Queue.Concurrency)
	envDuration("QUEUE_POLL_INTERVAL", &cfg.Queue.PollInterval)
	envDuration("QUEUE_ENQUEUE_TIMEOUT", &cfg.Queue.EnqueueTimeout)

	// Alert overrides
	envInt("ALERTS_DAILY_EMAIL_LIMIT", &cfg.Alerts.DailyEmailLimit)
	envString("ALERTS_FRONTEND_URL", &cfg.Alerts.FrontendURL)

	// Rates overrides
	envString("RATES_PRIMARY_URL", &cfg.Rates.PrimaryURL)
	envString("RATES_FALLBACK_URL", &cfg.Rates.FallbackURL)
	envDuration("RATES_TIMEOUT", &cfg.Rates.Timeout)
	envInt("RATES_MAX_ATTEMPTS", &cfg.Rates.MaxAttempts)
	envDuration("RATES_CACHE_TTL", &cfg.Rates.CacheTTL)

	// Mail overrides
	envBool("MAIL_ENABLED", &cfg.Mail.Enabled)
	envString("MAIL_HOST", &cfg.Mail.Host)
	envInt("MAIL_PORT", &cfg.Mail.Port)
	envString("MAIL_USERNAME", &cfg.Mail.Username)
	envString("MAIL_PASSWORD", &cfg.Mail.Password)
	envString("MAIL_FROM", &cfg.Mail.From)

	// Auth overrides
	envString("AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	envString("AUTH_ISSUER", &cfg.Auth.Issuer)
	envList("AUTH_ADMIN_API_KEYS", &cfg.Auth.AdminAPIKeys)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	// Janitor overrides
	envBool("JANITOR_ENABLED", &cfg.Janitor.Enabled)
	envString("JANITOR_SWEEP_SCHEDULE", &cfg.Janitor.SweepSchedule)
	envString("JANITOR_QUEUE_CLEAN_SCHEDULE", &cfg.Janitor.QueueCleanSchedule)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envList(name string, dst *[]string) {
	val := os.Getenv(EnvPrefix + name)
	if val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
