package observability

import (
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	"github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	"github.com/smallbiznis/kolaffiliate/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.SchedulerWithConfig,
	),
	// nothing else depends on the tracer provider; force it so the global is set
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

type componentConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

// splitConfig derives each component's settings from the one observability
// config so they always agree on service identity and exporter.
func splitConfig(cfg Config) componentConfigs {
	debug := cfg.Debug()
	return componentConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               debug,
			SamplingInitial:     100,
			SamplingThereafter:  100,
			SamplingWindow:      time.Second,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		},
		Tracing: tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}
