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

// Metrics exposes affiliate domain instruments.
type Metrics struct {
	clicksRecorded     metric.Int64Counter
	itemsReconciled    metric.Int64Counter
	commissionsCreated metric.Int64Counter
	tierChanges        metric.Int64Counter
	realtimePushes     metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kolaffiliate"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.clicksRecorded, "affiliate_clicks_recorded_total"},
		{&m.itemsReconciled, "affiliate_order_items_reconciled_total"},
		{&m.commissionsCreated, "affiliate_commissions_created_total"},
		{&m.tierChanges, "affiliate_tier_changes_total"},
		{&m.realtimePushes, "affiliate_realtime_pushes_total"},
		{&m.rateLimitDenied, "affiliate_rate_limit_denied_total"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// RecordClick counts a tracked click by platform tag.
func (m *Metrics) RecordClick(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("platform", strings.TrimSpace(platform)))
	m.clicksRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordItemReconciled counts order items by attribution outcome reason.
func (m *Metrics) RecordItemReconciled(ctx context.Context, attributed bool, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.Bool("attributed", attributed),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.itemsReconciled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCommissionCreated(ctx context.Context, attributionType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("attribution_type", strings.TrimSpace(attributionType)))
	m.commissionsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTierChange(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_tier", strings.TrimSpace(from)),
		attribute.String("to_tier", strings.TrimSpace(to)),
	)
	m.tierChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRealtimePush counts stats messages handed to subscribers.
func (m *Metrics) RecordRealtimePush(ctx context.Context, eventType string, delivered int) {
	if m == nil || delivered <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.realtimePushes.Add(ctx, int64(delivered), metric.WithAttributes(attrs...))
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

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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

// kol_id, short_code and ip are deliberately absent.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"platform":         {},
	"attributed":       {},
	"attribution_type": {},
	"from_tier":        {},
	"to_tier":          {},
	"endpoint":         {},
	"status_code":      {},
	"event_type":       {},
	"reason":           {},
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
