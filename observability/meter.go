package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/plcstream/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Cycle outcome labels.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// PollMetrics holds the instruments of the poll pipeline. A nil
// *PollMetrics is valid and records nothing.
type PollMetrics struct {
	cycles        metric.Int64Counter
	cycleDuration metric.Float64Histogram
	decodeErrors  metric.Int64Counter
	filtered      metric.Int64Counter
	delivered     metric.Int64Counter
	sinkFailed    metric.Int64Counter
	dropped       metric.Int64Counter
	queueDepth    metric.Int64UpDownCounter
}

// NewPollMetrics creates metric instruments on the given meter.
func NewPollMetrics(meter metric.Meter) (*PollMetrics, error) {
	cycles, err := meter.Int64Counter("plc.poll.cycles",
		metric.WithDescription("Poll cycles by item and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.poll.cycles counter: %w", err)
	}

	cycleDuration, err := meter.Float64Histogram("plc.poll.duration",
		metric.WithDescription("Duration of a device read in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.poll.duration histogram: %w", err)
	}

	decodeErrors, err := meter.Int64Counter("plc.decode.errors",
		metric.WithDescription("Raw values that failed to decode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.decode.errors counter: %w", err)
	}

	filtered, err := meter.Int64Counter("plc.filter.dropped",
		metric.WithDescription("Records removed by a filter"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.filter.dropped counter: %w", err)
	}

	delivered, err := meter.Int64Counter("plc.sink.delivered",
		metric.WithDescription("Records delivered to a sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.sink.delivered counter: %w", err)
	}

	sinkFailed, err := meter.Int64Counter("plc.sink.failed",
		metric.WithDescription("Records a sink failed to deliver"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.sink.failed counter: %w", err)
	}

	dropped, err := meter.Int64Counter("plc.fanout.dropped",
		metric.WithDescription("Records dropped because every fan-out channel was saturated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.fanout.dropped counter: %w", err)
	}

	queueDepth, err := meter.Int64UpDownCounter("plc.fanout.queued",
		metric.WithDescription("Records queued or in flight per fan-out channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plc.fanout.queued counter: %w", err)
	}

	return &PollMetrics{
		cycles:        cycles,
		cycleDuration: cycleDuration,
		decodeErrors:  decodeErrors,
		filtered:      filtered,
		delivered:     delivered,
		sinkFailed:    sinkFailed,
		dropped:       dropped,
		queueDepth:    queueDepth,
	}, nil
}

// RecordCycle records one poll cycle outcome.
func (m *PollMetrics) RecordCycle(ctx context.Context, item, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrItem, item),
		attribute.String(AttrStatus, status),
	))
	if status != StatusSkipped {
		m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String(AttrItem, item),
		))
	}
}

// RecordDecodeError counts a value that failed to decode.
func (m *PollMetrics) RecordDecodeError(ctx context.Context, item string) {
	if m == nil {
		return
	}
	m.decodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrItem, item)))
}

// RecordFiltered counts a record removed by a filter.
func (m *PollMetrics) RecordFiltered(ctx context.Context, item string) {
	if m == nil {
		return
	}
	m.filtered.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrItem, item)))
}

// RecordDelivered counts a record written to sink.
func (m *PollMetrics) RecordDelivered(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// RecordSinkFailed counts a record sink failed to deliver.
func (m *PollMetrics) RecordSinkFailed(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.sinkFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// RecordDropped counts a record rejected by a saturated fan-out stage.
func (m *PollMetrics) RecordDropped(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// QueueDelta adjusts the queued-plus-in-flight count of a fan-out channel.
func (m *PollMetrics) QueueDelta(ctx context.Context, stage string, channel int, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Int(AttrChannel, channel),
	))
}
