// Package rates looks up currency exchange rates from the public
// fawazahmed0 currency API, falling back to a mirror when the primary CDN
// is unreachable.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPrimaryURL  = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1"
	DefaultFallbackURL = "https://latest.currency-api.pages.dev/v1"
)

var (
	// ErrRateUnavailable is returned when no provider can supply a rate.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrInvalidCurrency is returned for malformed currency codes.
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Table maps lower-case currency codes to rates relative to a base.
type Table map[string]float64

// Rater is the capability the expense service depends on.
type Rater interface {
	Rates(ctx context.Context, base string) (Table, error)
}

// Metrics receives lookup outcomes. A nil Metrics is ignored.
type Metrics interface {
	RecordRateLookup(provider, outcome string)
}

// Config configures a Client.
type Config struct {
	// PrimaryURL and FallbackURL are API roots tried in order.
	PrimaryURL  string
	FallbackURL string

	// Timeout bounds each HTTP attempt.
	// Default: 5 seconds
	Timeout time.Duration

	// MaxAttempts is the number of tries per provider.
	// Default: 2
	MaxAttempts uint

	// RetryInterval is the initial wait between tries.
	// Default: 200ms
	RetryInterval time.Duration

	// CacheTTL is how long a fetched table is reused. Zero disables caching.
	CacheTTL time.Duration

	HTTPClient *http.Client
	Metrics    Metrics
}

type provider struct {
	name    string
	baseURL string
}

type cached struct {
	table     Table
	fetchedAt time.Time
}

// Client fetches rate tables over HTTP.
type Client struct {
	cfg       Config
	http      *http.Client
	providers []provider
	now       func() time.Time
	tracer    trace.Tracer
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cached
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.PrimaryURL == "" {
		cfg.PrimaryURL = DefaultPrimaryURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	providers := []provider{{name: "primary", baseURL: strings.TrimRight(cfg.PrimaryURL, "/")}}
	if cfg.FallbackURL != "" {
		providers = append(providers, provider{name: "fallback", baseURL: strings.TrimRight(cfg.FallbackURL, "/")})
	}

	return &Client{
		cfg:       cfg,
		http:      httpClient,
		providers: providers,
		now:       time.Now,
		tracer:    otel.Tracer("pennywise/rates"),
		logger:    slog.Default().With("component", "rates"),
		cache:     make(map[string]cached),
	}
}

// Rates returns the rate table for base. Each provider is tried in order;
// ErrRateUnavailable is returned when all fail.
func (c *Client) Rates(ctx context.Context, base string) (Table, error) {
	code, err := normalizeCode(base)
	if err != nil {
		return nil, err
	}

	if t, ok := c.cached(code); ok {
		return t, nil
	}

	ctx, span := c.tracer.Start(ctx, "rates.Rates", trace.WithAttributes(attribute.String("currency", code)))
	defer span.End()

	var errs []error
	for _, p := range c.providers {
		table, err := c.fetchWithRetry(ctx, p, code)
		if err == nil {
			c.record(p.name, "ok")
			c.store(code, table)
			span.SetAttributes(attribute.String("provider", p.name))
			return table, nil
		}
		c.record(p.name, "error")
		c.logger.Warn("rate provider failed", "provider", p.name, "currency", code, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		if ctx.Err() != nil {
			break
		}
	}

	err = fmt.Errorf("%w for %s: %w", ErrRateUnavailable, strings.ToUpper(code), errors.Join(errs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, "all providers failed")
	return nil, err
}

func (c *Client) fetchWithRetry(ctx context.Context, p provider, code string) (Table, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryInterval

	return backoff.Retry(ctx, func() (Table, error) {
		return c.fetch(ctx, p, code)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("retrying rate lookup", "provider", p.name, "currency", code, "backoff", d, "error", err)
		}),
	)
}

func (c *Client) fetch(ctx context.Context, p provider, code string) (Table, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/currencies/%s.json", p.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode rates: %w", err))
	}
	raw, ok := body[code]
	if !ok {
		return nil, backoff.Permanent(fmt.Errorf("response has no %q table", code))
	}
	var table Table
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode %s table: %w", code, err))
	}
	return table, nil
}

func (c *Client) cached(code string) (Table, bool) {
	if c.cfg.CacheTTL <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[code]
	if !ok || c.now().Sub(e.fetchedAt) > c.cfg.CacheTTL {
		return nil, false
	}
	return e.table, true
}

func (c *Client) store(code string, t Table) {
	if c.cfg.CacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[code] = cached{table: t, fetchedAt: c.now()}
}

func (c *Client) record(provider, outcome string) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordRateLookup(provider, outcome)
	}
}

func normalizeCode(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return code, nil
}

// Conversion is the result of converting an amount between currencies.
type Conversion struct {
	Amount float64
	Rate   float64
}

// Convert converts amount from one currency to another using r. The same
// currency converts at rate 1 without a lookup.
func Convert(ctx context.Context, r Rater, amount float64, from, to string) (Conversion, error) {
	src, err := normalizeCode(from)
	if err != nil {
		return Conversion{}, err
	}
	dst, err := normalizeCode(to)
	if err != nil {
		return Conversion{}, err
	}
	if src == dst {
		return Conversion{Amount: amount, Rate: 1}, nil
	}

	table, err := r.Rates(ctx, src)
	if err != nil {
		return Conversion{}, err
	}
	rate, ok := table[dst]
	if !ok || rate <= 0 {
		return Conversion{}, fmt.Errorf("%w: no %s rate for %s", ErrRateUnavailable,
			strings.ToUpper(dst), strings.ToUpper(src))
	}
	return Conversion{Amount: amount * rate, Rate: rate}, nil
}
