package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/bulkpromo/pkg/config"
)

// Commit modes.
const (
	CommitModeLocal  = "local"
	CommitModeRemote = "remote"
)

// Config holds all configuration for the bulk code service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"BULKCODE_HTTP_PORT" envDefault:"8090"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// CommitMode selects where batches are persisted: the local PostgreSQL
	// store or the remote discounts backend.
	CommitMode     string        `env:"COMMIT_MODE" envDefault:"local"`
	BackendBaseURL string        `env:"BACKEND_BASE_URL" envDefault:""`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`

	// Generation
	MaxCodeCount       int           `env:"MAX_CODE_COUNT" envDefault:"1000"`
	PreviewSampleCap   int           `env:"PREVIEW_SAMPLE_CAP" envDefault:"50"`
	CodeBodyLength     int           `env:"CODE_BODY_LENGTH" envDefault:"8"`
	CodeCharset        string        `env:"CODE_CHARSET" envDefault:""`
	ValidationDebounce time.Duration `env:"VALIDATION_DEBOUNCE" envDefault:"300ms"`
	PercentPrecision   int           `env:"PERCENT_PRECISION" envDefault:"0"`

	// Sessions
	SessionIdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// Idempotency cache
	IdempotencyEnabled    bool          `env:"IDEMPOTENCY_ENABLED" envDefault:"true"`
	IdempotencyTTL        time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyPendingTTL time.Duration `env:"IDEMPOTENCY_PENDING_TTL" envDefault:"5m"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"bulkpromo"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"bulkpromo_secret"`
	PostgresDB   string `env:"BULKCODE_DB_NAME" envDefault:"bulkpromo"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker settings for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	overrides []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load()
}

func load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	var overrides pkgconfig.Overrides
	opts = append(opts, pkgconfig.WithOverrideRecorder(overrides.Record))
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load bulkpromo config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.overrides = overrides.Names()
	return cfg, nil
}

// Overrides lists the environment variables that replaced a default.
func (c *Config) Overrides() []string {
	return c.overrides
}

// Remote reports whether batches are committed to the discounts backend.
func (c *Config) Remote() bool {
	return c.CommitMode == CommitModeRemote
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.CommitMode {
	case CommitModeLocal:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	case CommitModeRemote:
		if c.BackendBaseURL == "" {
			return fmt.Errorf("BACKEND_BASE_URL is required when COMMIT_MODE is remote")
		}
		if _, err := url.ParseRequestURI(c.BackendBaseURL); err != nil {
			return fmt.Errorf("invalid BACKEND_BASE_URL %q: %w", c.BackendBaseURL, err)
		}
	default:
		return fmt.Errorf("COMMIT_MODE must be %q or %q, got %q", CommitModeLocal, CommitModeRemote, c.CommitMode)
	}
	if c.MaxCodeCount < 1 {
		return fmt.Errorf("MAX_CODE_COUNT must be positive, got %d", c.MaxCodeCount)
	}
	if c.PreviewSampleCap < 1 {
		return fmt.Errorf("PREVIEW_SAMPLE_CAP must be positive, got %d", c.PreviewSampleCap)
	}
	if c.ValidationDebounce < 0 || c.ValidationDebounce > time.Second {
		return fmt.Errorf("VALIDATION_DEBOUNCE must be between 0 and 1s, got %s", c.ValidationDebounce)
	}
	if c.PercentPrecision < 0 || c.PercentPrecision > 4 {
		return fmt.Errorf("PERCENT_PRECISION must be between 0 and 4, got %d", c.PercentPrecision)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.IdempotencyEnabled && c.IdempotencyPendingTTL > c.IdempotencyTTL {
		return fmt.Errorf("IDEMPOTENCY_PENDING_TTL (%s) must not exceed IDEMPOTENCY_TTL (%s)", c.IdempotencyPendingTTL, c.IdempotencyTTL)
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %s", c.SessionSweepInterval)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
