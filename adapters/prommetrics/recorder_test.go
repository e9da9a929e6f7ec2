package prommetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_IncCounterUsesSanitizedNameAndLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewRecorder(registry, WithNamespace("app"))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	tags := map[string]string{"operation": "exchange_code", "status": "success", "service": "github", "ignored": "x"}
	recorder.IncCounter(ctx, "integrations.exchange_code.total", 1, tags)
	recorder.IncCounter(ctx, "integrations.exchange_code.total", 2, tags)

	counter, ok := recorder.counters["integrations_exchange_code_total"]
	if !ok {
		t.Fatalf("expected sanitized counter name")
	}
	got := testutil.ToFloat64(counter.WithLabelValues("exchange_code", "success", "github", "", "", "", ""))
	if got != 3 {
		t.Fatalf("expected counter value 3, got %v", got)
	}
	if count := testutil.CollectAndCount(registry, "app_integrations_exchange_code_total"); count != 1 {
		t.Fatalf("expected one registered series, got %d", count)
	}
}

func TestRecorder_ObserveHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewRecorder(registry, WithLabels("provider", "outcome"), WithBuckets([]float64{1, 10}))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	recorder.ObserveHistogram(context.Background(), "integrations.webhook.duration_ms", 4, map[string]string{
		"provider": "zoom",
		"outcome":  "accepted",
	})
	if count := testutil.CollectAndCount(registry, "integrations_webhook_duration_ms"); count != 1 {
		t.Fatalf("expected one histogram series, got %d", count)
	}
}

func TestRecorder_ReusesCollectorsAlreadyRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	second, err := NewRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	tags := map[string]string{"operation": "refresh_tokens", "status": "failure"}
	first.IncCounter(ctx, "integrations.refresh_tokens.total", 1, tags)
	second.IncCounter(ctx, "integrations.refresh_tokens.total", 1, tags)

	if first.counters["integrations_refresh_tokens_total"] != second.counters["integrations_refresh_tokens_total"] {
		t.Fatalf("expected second recorder to reuse the registered collector")
	}
	got := testutil.ToFloat64(first.counters["integrations_refresh_tokens_total"].WithLabelValues("refresh_tokens", "failure", "", "", "", "", ""))
	if got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestNewRecorder_RequiresRegisterer(t *testing.T) {
	if _, err := NewRecorder(nil); err == nil {
		t.Fatalf("expected error for nil registerer")
	}
}
