package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(NewDefaultConfig()); err != nil {
		t.Errorf("expected default config to pass validation, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.ListenAddress = "no-port"
	cfg.Queue.Concurrency = 0
	cfg.Telemetry.Logging.Level = "verbose"

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
	if !strings.Contains(verr.Error(), "validation failed with 3 errors") {
		t.Errorf("error message should mention multiple errors: %s", verr.Error())
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.Redis.Addr = "" }, "cache.redis.addr"},
		{"queue backend", func(c *Config) { c.Queue.Backend = "kafka" }, "queue.backend"},
		{"queue path", func(c *Config) { c.Queue.Path = "" }, "queue.path"},
		{"email limit", func(c *Config) { c.Alerts.DailyEmailLimit = -1 }, "alerts.daily_email_limit"},
		{"frontend url", func(c *Config) { c.Alerts.FrontendURL = "localhost:5173" }, "alerts.frontend_url"},
		{"rates url", func(c *Config) { c.Rates.PrimaryURL = "ftp://rates" }, "rates.primary_url"},
		{"rates attempts", func(c *Config) { c.Rates.MaxAttempts = 0 }, "rates.max_attempts"},
		{"mail host", func(c *Config) { c.Mail.Enabled = true; c.Mail.From = "a@b.c" }, "mail.host"},
		{"log format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"sample ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
		{"metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"sweep schedule", func(c *Config) { c.Janitor.SweepSchedule = "every minute" }, "janitor.sweep_schedule"},
		{"cors credentials", func(c *Config) {
			c.Server.CORS.AllowedOrigins = []string{"*"}
			c.Server.CORS.AllowCredentials = true
		}, "server.cors.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			var verr ValidationError
			if !errors.As(Validate(cfg), &verr) {
				t.Fatal("expected ValidationError")
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidate_DisabledSectionsSkipped(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Mail.Enabled = false
	cfg.Mail.Port = 0
	cfg.Janitor.Enabled = false
	cfg.Janitor.SweepSchedule = "bogus"

	if err := Validate(cfg); err != nil {
		t.Errorf("expected disabled sections to be skipped, got %v", err)
	}
}
