package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes the write-path and projection instruments.
type Metrics struct {
	commands          metric.Int64Counter
	conflictRetries   metric.Int64Counter
	eventsAppended    metric.Int64Counter
	projectionApplied metric.Int64Counter
	projectionSkipped metric.Int64Counter
	dispatchLatency   metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New creates the instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "billflow"
	}
	meter := provider.Meter(name)

	commands, err := meter.Int64Counter("billflow_commands_total")
	if err != nil {
		return nil, err
	}
	conflictRetries, err := meter.Int64Counter("billflow_command_conflict_retries_total")
	if err != nil {
		return nil, err
	}
	eventsAppended, err := meter.Int64Counter("billflow_events_appended_total")
	if err != nil {
		return nil, err
	}
	projectionApplied, err := meter.Int64Counter("billflow_projection_applied_total")
	if err != nil {
		return nil, err
	}
	projectionSkipped, err := meter.Int64Counter("billflow_projection_skipped_total")
	if err != nil {
		return nil, err
	}
	dispatchLatency, err := meter.Float64Histogram("billflow_dispatch_duration_ms")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		commands:          commands,
		conflictRetries:   conflictRetries,
		eventsAppended:    eventsAppended,
		projectionApplied: projectionApplied,
		projectionSkipped: projectionSkipped,
		dispatchLatency:   dispatchLatency,
	}, nil
}

// NewNoop returns instruments backed by the noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordCommand(ctx context.Context, command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("command", strings.TrimSpace(command)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.commands.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchLatency.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordConflictRetry(ctx context.Context, command string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("command", strings.TrimSpace(command)))
	m.conflictRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEventsAppended(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.eventsAppended.Add(ctx, int64(count))
}

func (m *Metrics) RecordProjectionApplied(ctx context.Context, consumer, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("consumer", consumer),
		attribute.String("event_type", eventType),
	)
	m.projectionApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordProjectionSkipped(ctx context.Context, consumer, eventType, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("consumer", consumer),
		attribute.String("event_type", eventType),
		attribute.String("reason", reason),
	)
	m.projectionSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"command":    {},
	"outcome":    {},
	"consumer":   {},
	"event_type": {},
	"reason":     {},
}

// FilterAttributes strips labels outside the allow list; bill ids never
// become metric labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
