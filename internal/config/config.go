package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewSearchConfigHolder),
	fx.Invoke(func(cfg Config) error { return cfg.Validate() }),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	NodeID      int64
	HTTPAddr    string
	// Role is the part of the platform this process serves. Set by the serve command.
	Role        string

	OTLPEndpoint string
	Telemetry    TelemetryConfig

	Services ServiceTable
	Routes   RouteTable

	UpstreamTimeout           time.Duration
	ProxyBufferThresholdBytes int64

	Notify    NotifyConfig
	Reconcile ReconcileConfig
	Email     EmailConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig

	StorageBackend string

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
}

type TelemetryConfig struct {
	LogLevel     string
	LogFormat    string
	// Export ships traces and metrics to the OTLP collector.
	Export       bool
	OTLPProtocol string
	SampleRatio  float64
}

type NotifyConfig struct {
	AdminEmail string
	QueueSize  int
	Workers    int
}

// ReconcileConfig toggles lifecycle behaviour that is deliberately left to the operator.
type ReconcileConfig struct {
	OnPaymentDelete        bool
	CascadeOnInvoiceDelete bool
	LockTTL                time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig throttles the gateway per client address. Zero disables it.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	services := LoadServices()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "crm"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		NodeID:       getenvInt64("NODE_ID", 1),
		HTTPAddr:     strings.TrimSpace(getenv("HTTP_ADDR", "")),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Telemetry: TelemetryConfig{
			LogLevel:     strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:    strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			Export:       getenvBool("OTLP_EXPORT_ENABLED", false),
			OTLPProtocol: strings.ToLower(strings.TrimSpace(getenv("OTLP_PROTOCOL", "grpc"))),
			SampleRatio:  getenvFloat("TRACE_SAMPLE_RATIO", 0.1),
		},

		Services: services,
		Routes:   NewRouteTable(services, DefaultRoutes()),

		UpstreamTimeout:           getenvDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		ProxyBufferThresholdBytes: getenvInt64("PROXY_BUFFER_THRESHOLD_BYTES", 1<<20),

		Notify: NotifyConfig{
			AdminEmail: strings.TrimSpace(getenv("ADMIN_EMAIL", "admin@crm.local")),
			QueueSize:  getenvInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:    getenvInt("NOTIFY_WORKERS", 2),
		},
		Reconcile: ReconcileConfig{
			OnPaymentDelete:        getenvBool("RECONCILE_ON_PAYMENT_DELETE", false),
			CascadeOnInvoiceDelete: getenvBool("CASCADE_PAYMENTS_ON_INVOICE_DELETE", false),
			LockTTL:                getenvDuration("RECONCILE_LOCK_TTL", 10*time.Second),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     strings.TrimSpace(getenv("SMTP_FROM", "crm@localhost")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},

		RateLimit: RateLimitConfig{
			RPS:   getenvFloat("GATEWAY_RATE_LIMIT_RPS", 0),
			Burst: getenvInt("GATEWAY_RATE_LIMIT_BURST", 0),
		},

		StorageBackend: normalizeStorage(getenv("STORAGE_BACKEND", StorageLocal)),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "crm"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "crm.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

func normalizeStorage(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StorageS3, "object", "objectstorage":
		return StorageS3
	default:
		return StorageLocal
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

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

// getenvDuration accepts Go durations ("3s") or a bare number of milliseconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
