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
	Environment      string
}

// Metrics exposes quota and review instruments.
type Metrics struct {
	admissions       metric.Int64Counter
	reservations     metric.Int64Counter
	consumptions     metric.Int64Counter
	reviews          metric.Int64Counter
	reviewDuration   metric.Float64Histogram
	rateLimitDenied  metric.Int64Counter
	progressDropped  metric.Int64Counter
	upstreamFailures metric.Int64Counter
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

// New registers the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "reviewmeter"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.admissions, err = meter.Int64Counter("reviewmeter_admissions_total"); err != nil {
		return nil, err
	}
	if m.reservations, err = meter.Int64Counter("reviewmeter_reservations_total"); err != nil {
		return nil, err
	}
	if m.consumptions, err = meter.Int64Counter("reviewmeter_commit_consumptions_total"); err != nil {
		return nil, err
	}
	if m.reviews, err = meter.Int64Counter("reviewmeter_reviews_total"); err != nil {
		return nil, err
	}
	if m.reviewDuration, err = meter.Float64Histogram("reviewmeter_review_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("reviewmeter_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	if m.progressDropped, err = meter.Int64Counter("reviewmeter_progress_dropped_total"); err != nil {
		return nil, err
	}
	if m.upstreamFailures, err = meter.Int64Counter("reviewmeter_upstream_failures_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAdmission counts admission decisions; reason is empty when admitted.
func (m *Metrics) RecordAdmission(ctx context.Context, tier, reason string) {
	if m == nil {
		return
	}
	outcome := "admitted"
	if reason != "" {
		outcome = "rejected"
	}
	attrs := FilterAttributes(
		attribute.String("tier", strings.TrimSpace(tier)),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	)
	m.admissions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReservation(ctx context.Context, dimension, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("dimension", dimension),
		attribute.String("outcome", outcome),
	)
	m.reservations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConsumption counts commits debited, or a lost race when ok is false.
func (m *Metrics) RecordConsumption(ctx context.Context, count int, ok bool) {
	if m == nil {
		return
	}
	outcome := "consumed"
	value := int64(count)
	if !ok {
		outcome = "limit_race"
		value = 1
	}
	m.consumptions.Add(ctx, value, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordReview(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...)
	m.reviews.Add(ctx, 1, attrs)
	m.reviewDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordProgressDropped(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.progressDropped.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("event_type", kind))...))
}

func (m *Metrics) RecordUpstreamFailure(ctx context.Context, provider, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", provider),
		attribute.String("reason", reason),
	)
	m.upstreamFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
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
	"tier":        {},
	"outcome":     {},
	"reason":      {},
	"dimension":   {},
	"endpoint":    {},
	"route":       {},
	"method":      {},
	"status_code": {},
	"provider":    {},
	"event_type":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
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
