package observability

import (
	"strings"

	"github.com/smallbiznis/kolaffiliate/internal/config"
)

const (
	defaultServiceName   = "kolaffiliate"
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
	defaultOtelProtocol  = "grpc"
	defaultSamplingRatio = 0.1
)

// Config is the observability view of the process config with defaults
// applied.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability
	c := Config{
		ServiceName:          orDefault(cfg.AppName, defaultServiceName),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.ToLower(orDefault(obs.LogLevel, defaultLogLevel)),
		LogFormat:            strings.ToLower(orDefault(obs.LogFormat, defaultLogFormat)),
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(orDefault(obs.OtelProtocol, defaultOtelProtocol)),
		OtelSamplingRatio:    obs.SamplingRatio,
	}

	if c.OtelSamplingRatio <= 0 || c.OtelSamplingRatio > 1 {
		c.OtelSamplingRatio = defaultSamplingRatio
	}
	// without an endpoint the exporters would only log dial failures
	if c.OtelExporterEndpoint == "" {
		c.OtelEnabled = false
	}
	return c
}

// Debug turns on development logging: explicit debug level or a
// non-production environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
