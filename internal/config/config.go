package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanCatalogHolder),
)

const (
	QuotaStoreSQL   = "sql"
	QuotaStoreRedis = "redis"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Observability ObservabilityConfig

	AuthJWTSecret string
	AuthJWTIssuer string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	QuotaStore string
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	GitHub     GitHubConfig
	Review     ReviewConfig
	Progress   ProgressConfig
	Events     EventsConfig
	Renewal    RenewalConfig

	PlanCatalogPath string
}

type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled               bool
	AnalysisRate          float64
	AnalysisBurst         int
	SessionLockTTLSeconds int
}

type GitHubConfig struct {
	APIURL       string
	Token        string
	Timeout      time.Duration
	DiffCacheTTL time.Duration
}

type ReviewConfig struct {
	GeminiAPIKey string
	Model        string
	ItemTimeout  time.Duration
	MaxDiffBytes int
}

type ProgressConfig struct {
	SubscriberBuffer int
	BacklogSize      int
	Relay            bool
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type RenewalConfig struct {
	Enabled    bool
	Schedule   string
	BatchSize  int
	PeriodDays int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "reviewmeter"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		AuthJWTSecret:     strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthJWTIssuer:     strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "reviewmeter"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "reviewmeter.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		QuotaStore:        normalizeQuotaStore(getenv("QUOTA_STORE", QuotaStoreSQL)),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:               getenvBool("RATE_LIMIT_ENABLED", false),
			AnalysisRate:          getenvFloat("RATE_LIMIT_ANALYSIS_RATE", 0.2),
			AnalysisBurst:         getenvInt("RATE_LIMIT_ANALYSIS_BURST", 3),
			SessionLockTTLSeconds: getenvInt("RATE_LIMIT_SESSION_LOCK_TTL_SECONDS", 900),
		},
		GitHub: GitHubConfig{
			APIURL:       strings.TrimRight(getenv("GITHUB_API_URL", "https://api.github.com"), "/"),
			Token:        strings.TrimSpace(getenv("GITHUB_TOKEN", "")),
			Timeout:      getenvDuration("GITHUB_TIMEOUT", 15*time.Second),
			DiffCacheTTL: getenvDuration("GITHUB_DIFF_CACHE_TTL", time.Hour),
		},
		Review: ReviewConfig{
			GeminiAPIKey: strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
			Model:        getenv("GEMINI_MODEL", "gemini-1.5-flash"),
			ItemTimeout:  getenvDuration("REVIEW_TIMEOUT", 60*time.Second),
			MaxDiffBytes: getenvInt("REVIEW_MAX_DIFF_BYTES", 200_000),
		},
		Progress: ProgressConfig{
			SubscriberBuffer: getenvInt("PROGRESS_BUFFER", 64),
			BacklogSize:      getenvInt("PROGRESS_BACKLOG", 0),
			Relay:            getenvBool("PROGRESS_RELAY", false),
		},
		Events: EventsConfig{
			AMQPURL:  strings.TrimSpace(getenv("AMQP_URL", "")),
			Exchange: getenv("AMQP_EXCHANGE", "review_events"),
		},
		Renewal: RenewalConfig{
			Enabled:    getenvBool("RENEWAL_ENABLED", true),
			Schedule:   getenv("RENEWAL_CRON", "@every 1h"),
			BatchSize:  getenvInt("RENEWAL_BATCH_SIZE", 100),
			PeriodDays: getenvInt("RENEWAL_PERIOD_DAYS", 30),
		},
		PlanCatalogPath: strings.TrimSpace(getenv("PLAN_CATALOG_PATH", "")),
	}

	if cfg.Environment == "production" && cfg.AuthJWTSecret == "" {
		log.Printf("[config] AUTH_JWT_SECRET is empty; bearer tokens will be rejected")
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeQuotaStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case QuotaStoreRedis:
		return QuotaStoreRedis
	default:
		return QuotaStoreSQL
	}
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
		log.Printf("[config] invalid %s=%q, using %d", key, value, def)
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
