package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool
	AuthJWTSecret    string
	SeedDemoData     bool

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Affiliate AffiliateConfig
	RateLimit RateLimitConfig
	Realtime  RealtimeConfig
	Scheduler SchedulerConfig
	Metrics   CloudMetricsConfig
}

// ObservabilityConfig carries raw logging and OpenTelemetry settings;
// observability.LoadConfig applies defaults.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// AffiliateConfig drives link generation and attribution windows.
type AffiliateConfig struct {
	BaseURL           string
	ShortCodeLength   int
	RecentClickWindow time.Duration
	LinkCacheSize     int64
	LinkCacheTTL      time.Duration
}

type RateLimitConfig struct {
	ClickEnabled bool
	// Clicks per second allowed for a single client IP.
	ClickRate  float64
	ClickBurst int
}

type RealtimeConfig struct {
	RefreshInterval   time.Duration
	HeartbeatInterval time.Duration
}

type SchedulerConfig struct {
	RunInterval          time.Duration
	BatchSize            int
	BatchDelay           time.Duration
	BatchConcurrency     int
	FullPassInterval     time.Duration
	EligibleSweepEvery   time.Duration
	CounterRepairEvery   time.Duration
	JobTimeout           time.Duration
	LockTTL              time.Duration
	RunOnStart           bool
	MetricsPushEvery     time.Duration
	DisabledJobs         []string
	EligibleSweepLimit   int
	CounterRepairBatches int
}

type CloudMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", getenv("DEPLOYMENT_ENV", "development"))
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "kolaffiliate"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,
		AuthJWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		SeedDemoData:     getenvBool("SEED_DEMO_DATA", false),
		OTLPEndpoint:     getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),

		Observability: ObservabilityConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OtelEnabled:   getenvBool("OTEL_ENABLED", true),
			OtelProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", true),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Affiliate: AffiliateConfig{
			BaseURL:           strings.TrimRight(getenv("AFFILIATE_BASE_URL", "http://localhost:3000"), "/"),
			ShortCodeLength:   getenvInt("AFFILIATE_SHORT_CODE_LENGTH", 8),
			RecentClickWindow: getenvDuration("AFFILIATE_RECENT_CLICK_WINDOW", 30*time.Minute),
			LinkCacheSize:     getenvInt64("AFFILIATE_LINK_CACHE_SIZE", 10_000),
			LinkCacheTTL:      getenvDuration("AFFILIATE_LINK_CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			ClickEnabled: getenvBool("CLICK_RATE_LIMIT_ENABLED", true),
			ClickRate:    getenvFloat("CLICK_RATE_LIMIT_RATE", 5),
			ClickBurst:   getenvInt("CLICK_RATE_LIMIT_BURST", 20),
		},
		Realtime: RealtimeConfig{
			RefreshInterval:   getenvDuration("REALTIME_REFRESH_INTERVAL", 30*time.Second),
			HeartbeatInterval: getenvDuration("REALTIME_HEARTBEAT_INTERVAL", 15*time.Second),
		},
		Scheduler: SchedulerConfig{
			RunInterval:          getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:            getenvInt("SCHEDULER_BATCH_SIZE", 25),
			BatchDelay:           getenvDuration("SCHEDULER_BATCH_DELAY", 100*time.Millisecond),
			BatchConcurrency:     getenvInt("SCHEDULER_BATCH_CONCURRENCY", 5),
			FullPassInterval:     getenvDuration("SCHEDULER_FULL_PASS_INTERVAL", 24*time.Hour),
			EligibleSweepEvery:   getenvDuration("SCHEDULER_ELIGIBLE_SWEEP_INTERVAL", 6*time.Hour),
			CounterRepairEvery:   getenvDuration("SCHEDULER_COUNTER_REPAIR_INTERVAL", 24*time.Hour),
			JobTimeout:           getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Minute),
			LockTTL:              getenvDuration("SCHEDULER_LOCK_TTL", 45*time.Minute),
			RunOnStart:           getenvBool("SCHEDULER_RUN_ON_START", false),
			MetricsPushEvery:     getenvDuration("SCHEDULER_METRICS_PUSH_INTERVAL", time.Minute),
			DisabledJobs:         parseList(getenv("SCHEDULER_DISABLED_JOBS", "")),
			EligibleSweepLimit:   getenvInt("SCHEDULER_ELIGIBLE_SWEEP_LIMIT", 500),
			CounterRepairBatches: getenvInt("SCHEDULER_COUNTER_REPAIR_BATCH", 200),
		},
		Metrics: CloudMetricsConfig{
			Enabled:   getenvBool("CLOUD_METRICS_ENABLED", false),
			Exporter:  strings.ToLower(getenv("CLOUD_METRICS_EXPORTER", "")),
			Endpoint:  strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
