package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/queue"
)

func newTestCollector(t *testing.T, enabled bool) *Collector {
	t.Helper()
	return NewCollector(&config.MetricsConfig{Enabled: enabled, Namespace: "test"}, prometheus.NewRegistry())
}

func TestNewCollector(t *testing.T) {
	t.Run("nil registry creates one", func(t *testing.T) {
		c := NewCollector(&config.MetricsConfig{Enabled: true}, nil)
		if c.Registry() == nil {
			t.Fatal("expected registry")
		}
	})

	t.Run("empty namespace gets default", func(t *testing.T) {
		cfg := &config.MetricsConfig{Enabled: true}
		NewCollector(cfg, nil)
		if cfg.Namespace != config.DefaultMetricsNamespace {
			t.Errorf("namespace = %q", cfg.Namespace)
		}
	})
}

func TestCollector_Record(t *testing.T) {
	c := newTestCollector(t, true)

	c.RecordCacheResult("get", "hit")
	c.RecordCacheResult("get", "hit")
	c.RecordCacheResult("get", "miss")
	if got := testutil.ToFloat64(c.cache.operations.WithLabelValues("get", "hit")); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}

	c.RecordJob("budget-alert", "completed", 20*time.Millisecond)
	if got := testutil.ToFloat64(c.jobs.jobsTotal.WithLabelValues("budget-alert", "completed")); got != 1 {
		t.Errorf("jobs = %v, want 1", got)
	}

	c.RecordExpense("created")
	if got := testutil.ToFloat64(c.budget.expensesTotal.WithLabelValues("created")); got != 1 {
		t.Errorf("expenses = %v, want 1", got)
	}

	c.RecordAlert(0.75, "enqueued")
	if got := testutil.ToFloat64(c.budget.alertsTotal.WithLabelValues("0.75", "enqueued")); got != 1 {
		t.Errorf("alerts = %v, want 1", got)
	}

	c.RecordRateLookup("primary", "ok")
	if got := testutil.ToFloat64(c.rates.lookupsTotal.WithLabelValues("primary", "ok")); got != 1 {
		t.Errorf("rate lookups = %v, want 1", got)
	}

	c.RecordHTTPRequest("POST", "/api/expenses", 201, 5*time.Millisecond)
	if got := testutil.ToFloat64(c.http.requestsTotal.WithLabelValues("POST", "/api/expenses", "201")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}

	c.UpdateQueueDepth(queue.Stats{Waiting: 3, Failed: 1})
	if got := testutil.ToFloat64(c.jobs.depth.WithLabelValues("waiting")); got != 3 {
		t.Errorf("waiting depth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.jobs.depth.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed depth = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := newTestCollector(t, false)

	c.RecordCacheResult("get", "hit")
	c.RecordExpense("created")

	if got := testutil.ToFloat64(c.cache.operations.WithLabelValues("get", "hit")); got != 0 {
		t.Errorf("disabled collector recorded cache hit: %v", got)
	}
	if got := testutil.ToFloat64(c.budget.expensesTotal.WithLabelValues("created")); got != 0 {
		t.Errorf("disabled collector recorded expense: %v", got)
	}
}

func TestCollector_RouteCardinality(t *testing.T) {
	c := newTestCollector(t, true)
	c.routes = NewCardinalityLimiter(2)

	c.RecordHTTPRequest("GET", "/a", 200, time.Millisecond)
	c.RecordHTTPRequest("GET", "/b", 200, time.Millisecond)
	c.RecordHTTPRequest("GET", "/c", 200, time.Millisecond)

	if got := testutil.ToFloat64(c.http.requestsTotal.WithLabelValues("GET", "other", "200")); got != 1 {
		t.Errorf("overflow route count = %v, want 1", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cl.Allow(fmt.Sprintf("v%d", i%20))
		}(i)
	}
	wg.Wait()

	if cl.Count() != 10 {
		t.Errorf("Count() = %d, want 10", cl.Count())
	}
	for i := 0; i < 20; i++ {
		v := fmt.Sprintf("v%d", i)
		if cl.Allow(v) {
			continue
		}
		if cl.Count() != 10 {
			t.Errorf("rejected %s below limit", v)
		}
	}
}

func TestHandler(t *testing.T) {
	c := newTestCollector(t, true)
	c.RecordExpense("created")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `test_expenses_total{outcome="created"} 1`) {
		t.Errorf("metrics output missing expense counter:\n%s", body)
	}
}
