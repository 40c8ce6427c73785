package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/taskgraph/logger"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected int64 sum, got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestSchedulerMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewSchedulerMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.RecordStarted(ctx, "run-1")
	m.RecordStarted(ctx, "run-1")
	m.RecordCompleted(ctx, "run-1", "succeeded", true, 300)
	m.RecordCompleted(ctx, "run-1", "failed", false, 0)
	m.RecordSkipped(ctx, "run-1", 2)
	m.RecordSkipped(ctx, "run-1", 0)
	m.RecordBudgetExceeded(ctx, "run-1")
	m.RecordRecompute(ctx, "run-1", 2*time.Millisecond)

	got := collect(t, reader)
	tests := []struct {
		name string
		want int64
	}{
		{MetricTasksStarted, 2},
		{MetricTasksCompleted, 2},
		{MetricTasksRunning, 1},
		{MetricTokensUsed, 300},
		{MetricTasksSkipped, 2},
		{MetricBudgetExceeded, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metric, ok := got[tt.name]
			if !ok {
				t.Fatalf("metric %s not collected", tt.name)
			}
			if v := sumOf(t, metric); v != tt.want {
				t.Errorf("expected %d, got %d", tt.want, v)
			}
		})
	}
	if _, ok := got[MetricRecomputeDuration]; !ok {
		t.Error("expected recompute histogram")
	}
}

func TestSchedulerMetrics_NilIsNoop(t *testing.T) {
	var m *SchedulerMetrics
	ctx := context.Background()
	m.RecordStarted(ctx, "r")
	m.RecordCompleted(ctx, "r", "failed", true, 5)
	m.RecordSkipped(ctx, "r", 1)
	m.RecordBudgetExceeded(ctx, "r")
	m.RecordRecompute(ctx, "r", time.Second)
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestSpanHelpers(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanTaskExecute)
	SetSpanAttribute(ctx, AttrTaskID, "t1")
	SetSpanAttribute(ctx, AttrAttempt, 2)
	SetSpanAttribute(ctx, AttrTokensUsed, int64(10))
	SetSpanAttribute(ctx, "ratio", 1.5)
	SetSpanAttribute(ctx, "flag", true)
	SetSpanAttribute(ctx, "ids", []string{"a"})
	SetSpanAttribute(ctx, "ignored", struct{}{})
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != SpanTaskExecute {
		t.Errorf("unexpected span name %q", s.Name())
	}
	if len(s.Attributes()) != 6 {
		t.Errorf("expected 6 attributes, got %d", len(s.Attributes()))
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected recorded error event, got %d", len(s.Events()))
	}
}

func TestSpanHelpers_NoSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span"))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("rate %v: expected %q, got %q", tt.rate, tt.want, got)
		}
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.ServiceName != "taskgraph" || cfg.Endpoint != "localhost:4318" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestInitRejectsBadSampleRate(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, SampleRate: 2}, logger.Nop())
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Config{ServiceName: "svc", ServiceVersion: "1.2.3", Environment: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "svc" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}

type staticChecker Health

func (c staticChecker) CheckHealth(context.Context) Health { return Health(c) }

func TestCheck(t *testing.T) {
	sh := Check(context.Background(), "taskgraph", "v1",
		staticChecker{Name: "runner", Status: HealthStatusUp},
		staticChecker{Name: "budget", Status: HealthStatusDegraded},
	)
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", sh.Status)
	}
	sh.AddComponent(Health{Name: "x", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "y", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected down to stick, got %s", sh.Status)
	}
	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
}
