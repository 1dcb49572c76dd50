package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("plcdemo")

	if cfg.ServiceName != "plcdemo" {
		t.Errorf("expected ServiceName 'plcdemo', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("plcdemo")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, "plcdemo", "1.0.0", "development")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
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
	for _, tc := range tests {
		if got := samplerFor(tc.rate).Description(); got != tc.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestNewPollMetricsNoop(t *testing.T) {
	metrics, err := NewPollMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordCycle(ctx, "test1", StatusOK, 10*time.Millisecond)
	metrics.RecordDecodeError(ctx, "test1")
	metrics.RecordFiltered(ctx, "test2")
	metrics.RecordDelivered(ctx, "console")
	metrics.RecordDropped(ctx, "test5")
	metrics.QueueDelta(ctx, "test5", 0, 1)
}

func TestNilPollMetrics(t *testing.T) {
	var m *PollMetrics
	ctx := context.Background()
	m.RecordCycle(ctx, "x", StatusOK, time.Millisecond)
	m.RecordDecodeError(ctx, "x")
	m.RecordFiltered(ctx, "x")
	m.RecordDelivered(ctx, "x")
	m.RecordDropped(ctx, "x")
	m.QueueDelta(ctx, "x", 0, 1)
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestPollMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewPollMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	metrics.RecordCycle(ctx, "test1", StatusOK, 5*time.Millisecond)
	metrics.RecordCycle(ctx, "test1", StatusError, 5*time.Millisecond)
	metrics.RecordCycle(ctx, "test1", StatusSkipped, 0)
	metrics.RecordFiltered(ctx, "test2")
	metrics.RecordFiltered(ctx, "test2")
	metrics.QueueDelta(ctx, "test5", 1, 1)
	metrics.QueueDelta(ctx, "test5", 1, 1)
	metrics.QueueDelta(ctx, "test5", 1, -1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	if got := sumOf(t, rm, "plc.poll.cycles"); got != 3 {
		t.Errorf("expected 3 cycles, got %d", got)
	}
	if got := sumOf(t, rm, "plc.filter.dropped"); got != 2 {
		t.Errorf("expected 2 filtered, got %d", got)
	}
	if got := sumOf(t, rm, "plc.fanout.queued"); got != 1 {
		t.Errorf("expected queue depth 1, got %d", got)
	}
}

func TestStartCycleSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartCycleSpan(context.Background(), "test1", "holding:0[3]", 7)
	EndSpan(span, errors.New("timeout"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != SpanPollCycle {
		t.Errorf("expected span %q, got %q", SpanPollCycle, s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
	want := map[attribute.Key]attribute.Value{
		AttrItem:     attribute.StringValue("test1"),
		AttrAddress:  attribute.StringValue("holding:0[3]"),
		AttrCycleSeq: attribute.Int64Value(7),
	}
	for _, kv := range s.Attributes() {
		if v, ok := want[kv.Key]; ok {
			if v != kv.Value {
				t.Errorf("attribute %s = %v, want %v", kv.Key, kv.Value.Emit(), v.Emit())
			}
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Errorf("missing attributes %v", want)
	}
}

func TestSetSpanAttributeNoSpan(t *testing.T) {
	// Must not panic without a recording span.
	SetSpanAttribute(context.Background(), AttrChannel, 2)
}

func TestNewResource(t *testing.T) {
	res, err := newResource("plcdemo", "1.0.0", "development")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "plcdemo" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}
