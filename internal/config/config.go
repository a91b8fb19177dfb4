package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
	Orders    OrdersConfig
}

type HTTPConfig struct {
	Port          int           `envconfig:"API_HTTP_PORT" default:"8080"`
	ShutdownGrace time.Duration `envconfig:"API_SHUTDOWN_GRACE" default:"15s"`
}

type DatabaseConfig struct {
	URL         string        `envconfig:"DATABASE_URL"`
	Host        string        `envconfig:"DB_HOST" default:"localhost"`
	Port        string        `envconfig:"DB_PORT" default:"5432"`
	User        string        `envconfig:"DB_USER" default:"postgres"`
	Password    string        `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string        `envconfig:"DB_NAME" default:"stockledger"`
	SSLMode     string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int           `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int           `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"5m"`
	TxTimeout   time.Duration `envconfig:"DB_TX_TIMEOUT" default:"5s"`
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type StorageConfig struct {
	Backend        string        `envconfig:"STORAGE" default:"postgres"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

type TelemetryConfig struct {
	LogLevel      string  `envconfig:"LOG_LEVEL" default:"info"`
	OTelEndpoint  string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTracing bool    `envconfig:"OTEL_ENABLE_TRACING" default:"true"`
	EnableMetrics bool    `envconfig:"OTEL_ENABLE_METRICS" default:"true"`
	SampleRate    float64 `envconfig:"OTEL_SAMPLE_RATE" default:"1.0"`
}

type ServiceConfig struct {
	Name        string `envconfig:"API_SERVICE_NAME" default:"stockledger-api"`
	Version     string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

type OrdersConfig struct {
	// CustomerCancelPendingOnly stops customers from cancelling orders a manager has picked up.
	CustomerCancelPendingOnly bool `envconfig:"ORDERS_CUSTOMER_CANCEL_PENDING_ONLY" default:"false"`
}

// Load reads an optional .env file and then the environment, applying defaults
// when needed. Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg Config
	sections := []struct {
		name   string
		target any
	}{
		{"HTTP", &cfg.HTTP},
		{"database", &cfg.Database},
		{"storage", &cfg.Storage},
		{"Kafka", &cfg.Kafka},
		{"telemetry", &cfg.Telemetry},
		{"service", &cfg.Service},
		{"orders", &cfg.Orders},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("loading %s config: %w", s.name, err)
		}
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.buildURL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE %q: must be %s or %s", c.Storage.Backend, StoragePostgres, StorageMemory)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATE %v: must be between 0 and 1", c.Telemetry.SampleRate)
	}
	if c.Database.TxTimeout < 0 {
		return fmt.Errorf("invalid DB_TX_TIMEOUT %s: must not be negative", c.Database.TxTimeout)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	switch strings.ToLower(t.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (d DatabaseConfig) buildURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("pool_max_conns", fmt.Sprint(d.MaxConns))
	q.Set("pool_min_conns", fmt.Sprint(d.MinConns))
	q.Set("pool_max_conn_lifetime", d.MaxLifetime.String())
	u.RawQuery = q.Encode()
	return u.String()
}
