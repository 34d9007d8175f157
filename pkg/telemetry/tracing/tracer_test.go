package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"pennywise-hq/budgetd/pkg/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		if _, err := New(ctx, nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		tr, err := New(ctx, &config.TracingConfig{Enabled: false})
		if err != nil {
			t.Fatal(err)
		}
		if tr.Enabled() {
			t.Error("expected disabled tracer")
		}
		_, span := tr.Start(ctx, "noop")
		span.End()
		if err := tr.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() = %v", err)
		}
	})

	t.Run("invalid ratio", func(t *testing.T) {
		_, err := New(ctx, &config.TracingConfig{Enabled: true, SampleRatio: 2}, WithExporter(tracetest.NewInMemoryExporter()))
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestTracer_Export(t *testing.T) {
	ctx := context.Background()
	exp := tracetest.NewInMemoryExporter()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tr, err := New(ctx, &config.TracingConfig{Enabled: true, ServiceName: "test", SampleRatio: 1}, WithExporter(exp), WithVersion("1.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Shutdown(ctx)

	ctx, span := otel.Tracer("pennywise/test").Start(ctx, "budget.Recompute")
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside span")
	}
	SetStatus(span, errors.New("boom"))
	span.End()

	if err := tr.ForceFlush(ctx); err != nil {
		t.Fatal(err)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Name != "budget.Recompute" || spans[0].Status.Code != codes.Error {
		t.Errorf("span = %s %v", spans[0].Name, spans[0].Status)
	}
	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "test" {
		t.Errorf("service.name = %q", service)
	}
}

func TestNewSampler(t *testing.T) {
	for _, ratio := range []float64{0, 0.25, 1} {
		if _, err := NewSampler(ratio); err != nil {
			t.Errorf("NewSampler(%v) = %v", ratio, err)
		}
	}
	for _, ratio := range []float64{-0.1, 1.5} {
		if _, err := NewSampler(ratio); err == nil {
			t.Errorf("NewSampler(%v) expected error", ratio)
		}
	}
}

func TestHTTPMiddleware(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceID(r.Context()) == "" {
			t.Error("handler context has no trace")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budget/totals", nil))

	if rec.Header().Get("X-Trace-ID") == "" {
		t.Error("missing X-Trace-ID header")
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v", spans[0].Status)
	}
	found := false
	for _, a := range spans[0].Attributes {
		if a.Key == attribute.Key("http.status_code") && a.Value.AsInt64() == 500 {
			found = true
		}
	}
	if !found {
		t.Error("missing http.status_code attribute")
	}
}
