package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pennywise-hq/budgetd/pkg/alerts"
	"pennywise-hq/budgetd/pkg/budget"
	"pennywise-hq/budgetd/pkg/cache"
	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/expense"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/queue"
	"pennywise-hq/budgetd/pkg/rates"
	"pennywise-hq/budgetd/pkg/server/middleware"
	"pennywise-hq/budgetd/pkg/telemetry/health"
	"pennywise-hq/budgetd/pkg/telemetry/metrics"
)

const (
	testSecret = "s3cret"
	testAPIKey = "admin-key"
)

type staticRates map[string]rates.Table

func (s staticRates) Rates(ctx context.Context, base string) (rates.Table, error) {
	if t, ok := s[base]; ok {
		return t, nil
	}
	return nil, rates.ErrRateUnavailable
}

type testEnv struct {
	handler http.Handler
	queue   *queue.MemoryQueue
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.AdminAPIKeys = []string{testAPIKey}

	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	led := ledger.NewMemoryStore()
	prefs := preference.NewMemoryStore()
	bc := cache.New(store)
	q := queue.NewMemoryQueue(time.Now)
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, prometheus.NewRegistry())

	svc := expense.NewService(expense.Deps{
		Ledger:      led,
		Preferences: prefs,
		Cache:       bc,
		Aggregator:  budget.NewAggregator(led, bc, time.Now),
		Rates:       staticRates{"usd": {"inr": 80}},
		Alerts:      alerts.NewEngine(q, prefs, alerts.EngineConfig{}),
		Metrics:     collector,
	})

	checker := health.New(time.Second)
	checker.RegisterCheck("ledger", health.PingCheck(led))

	srv := New(cfg, Deps{
		Expenses: svc,
		Cache:    bc,
		Queue:    q,
		Checker:  checker,
		Metrics:  collector,
		Build:    BuildInfo{Version: "test"},
	})

	token, err := middleware.IssueToken(testSecret, "", "u1", "alice@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{handler: srv.Handler(), queue: q, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, auth string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func TestAPI_ExpenseLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPut, "/api/preferences", map[string]any{
		"baseCurrency": "INR",
		"budget":       100,
		"resetCycle":   "monthly",
	}, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT preferences = %d %v", rec.Code, body)
	}

	rec, body = env.do(t, http.MethodPost, "/api/expenses", map[string]any{
		"title": "Lunch", "amount": 60, "currency": "INR",
		"category": "Food", "date": today(),
	}, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST expense = %d %v", rec.Code, body)
	}
	status := body["budgetStatus"].(map[string]any)
	if status["currentPeriodTotal"] != 60.0 || status["budgetExceeded"] != false {
		t.Errorf("budgetStatus = %v", status)
	}
	id := body["expense"].(map[string]any)["id"].(string)

	stats, _ := env.queue.Stats(context.Background())
	if stats.Waiting != 1 {
		t.Errorf("queued alerts = %d, want 1 (50%% threshold)", stats.Waiting)
	}

	rec, body = env.do(t, http.MethodGet, "/api/expenses?page=1&limit=10", nil, env.token)
	if rec.Code != http.StatusOK || len(body["expenses"].([]any)) != 1 {
		t.Fatalf("GET expenses = %d %v", rec.Code, body)
	}

	rec, body = env.do(t, http.MethodGet, "/api/expenses/totals", nil, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET totals = %d", rec.Code)
	}
	info := body["budgetInfo"].(map[string]any)
	if info["percentageUsed"] != 60.0 || body["currency"] != "INR" {
		t.Errorf("budgetInfo = %v currency = %v", info, body["currency"])
	}

	rec, _ = env.do(t, http.MethodPut, "/api/expenses/"+id, map[string]any{"amount": 10}, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT expense = %d", rec.Code)
	}
	_, body = env.do(t, http.MethodGet, "/api/expenses/totals", nil, env.token)
	if got := body["budgetInfo"].(map[string]any)["currentPeriodTotal"]; got != 10.0 {
		t.Errorf("total after update = %v, want 10", got)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/expenses/"+id, nil, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE expense = %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodDelete, "/api/expenses/"+id, nil, env.token)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", rec.Code)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "missing title",
			body: map[string]any{"amount": 5, "currency": "INR", "category": "Food", "date": today()},
			want: http.StatusBadRequest,
		},
		{
			name: "bad date",
			body: map[string]any{"title": "x", "amount": 5, "currency": "INR", "category": "Food", "date": "yesterday"},
			want: http.StatusBadRequest,
		},
		{
			name: "negative amount",
			body: map[string]any{"title": "x", "amount": -5, "currency": "INR", "category": "Food", "date": today()},
			want: http.StatusBadRequest,
		},
		{
			name: "invalid currency",
			body: map[string]any{"title": "x", "amount": 5, "currency": "RUPEES", "category": "Food", "date": today()},
			want: http.StatusBadRequest,
		},
		{
			name: "rate unavailable",
			body: map[string]any{"title": "x", "amount": 5, "currency": "GBP", "category": "Food", "date": today()},
			want: http.StatusUnprocessableEntity,
		},
	}

	env.do(t, http.MethodPut, "/api/preferences", map[string]any{"baseCurrency": "INR"}, env.token)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/expenses", tt.body, env.token)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%v)", rec.Code, tt.want, body)
			}
			if body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
		})
	}
}

func TestAPI_Auth(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/expenses", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/admin/queue/stats", nil, env.token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("user token on admin route = %d", rec.Code)
	}
	rec, body := env.do(t, http.MethodGet, "/admin/queue/stats", nil, testAPIKey)
	if rec.Code != http.StatusOK || body["total"] != 0.0 {
		t.Errorf("admin stats = %d %v", rec.Code, body)
	}
}

func TestAPI_Export(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{
		"title": "Taxi", "amount": 12.5, "currency": "INR", "category": "Travel", "date": today(),
	}, env.token)

	rec, _ := env.do(t, http.MethodGet, "/api/expenses/export?format=csv", nil, env.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), ".csv") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "Taxi") {
		t.Errorf("csv body missing row: %q", rec.Body.String())
	}

	rec, _ = env.do(t, http.MethodGet, "/api/expenses/export?format=pdf", nil, env.token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported format = %d", rec.Code)
	}
}

func TestAPI_AdminQueue(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/admin/queue/clean?grace=1h", nil, testAPIKey)
	if rec.Code != http.StatusOK || body["removed"] != 0.0 {
		t.Errorf("clean = %d %v", rec.Code, body)
	}
	rec, _ = env.do(t, http.MethodPost, "/admin/queue/clean?grace=soon", nil, testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad grace = %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/admin/queue/retry", nil, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Errorf("retry = %d", rec.Code)
	}
	rec, body = env.do(t, http.MethodPost, "/admin/cache/clear", nil, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Errorf("cache clear = %d %v", rec.Code, body)
	}
	rec, _ = env.do(t, http.MethodGet, "/admin/health", nil, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Errorf("admin health = %d", rec.Code)
	}
}

func TestAPI_Operational(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/ready", "/version", "/metrics"} {
		rec, _ := env.do(t, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
		if rec.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("GET %s missing request id", path)
		}
	}
}
