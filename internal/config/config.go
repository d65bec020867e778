// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/swarmpush/swarmpush/internal/database"
	"github.com/swarmpush/swarmpush/internal/telemetry"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Push gateway providers.
const (
	ProviderExpo = "expo"
	ProviderFCM  = "fcm"
)

// Config is the full service configuration.
type Config struct {
	App       App
	Database  Database
	Gateway   Gateway
	Auth      Auth
	PubSub    PubSub
	Telemetry Telemetry
}

type App struct {
	Port            string        `env:"APP_PORT" env-default:"8080"`
	Env             string        `env:"APP_ENV" env-default:"development"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	RequireTLS      bool          `env:"REQUIRE_TLS" env-default:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
}

type Database struct {
	Driver          string        `env:"DB_DRIVER" env-default:"memory"`
	Host            string        `env:"DB_HOST" env-default:"localhost"`
	Port            int           `env:"DB_PORT" env-default:"5432"`
	User            string        `env:"DB_USER" env-default:"swarmpush"`
	Password        string        `env:"DB_PASSWORD" env-default:"localdev"`
	Name            string        `env:"DB_NAME" env-default:"swarmpush"`
	SSLMode         string        `env:"DB_SSL_MODE" env-default:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"2"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" env-default:"true"`
	SQLitePath      string        `env:"SQLITE_PATH" env-default:"data/swarmpush.db"`
}

// Postgres returns the pool configuration.
func (d Database) Postgres() database.Config {
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

type Gateway struct {
	Provider           string        `env:"PUSH_PROVIDER" env-default:"expo"`
	ExpoURL            string        `env:"EXPO_PUSH_URL" env-default:"https://exp.host/--/api/v2/push/send"`
	ExpoAccessToken    string        `env:"EXPO_ACCESS_TOKEN"`
	FCMCredentialsFile string        `env:"FCM_CREDENTIALS_FILE"`
	Timeout            time.Duration `env:"PUSH_TIMEOUT" env-default:"10s"`
}

type Auth struct {
	SigningKey string `env:"JWT_SIGNING_KEY"`
	Issuer     string `env:"JWT_ISSUER" env-default:"swarmpush"`
	Audience   string `env:"JWT_AUDIENCE" env-default:"swarmpush-api"`
}

// PubSub relays registry changes between instances. Empty ProjectID
// disables the relay.
type PubSub struct {
	ProjectID    string `env:"PUBSUB_PROJECT_ID"`
	Topic        string `env:"PUBSUB_TOPIC" env-default:"device-changes"`
	Subscription string `env:"PUBSUB_SUBSCRIPTION"`
}

// Enabled reports whether the relay should run.
func (p PubSub) Enabled() bool { return p.ProjectID != "" }

type Telemetry struct {
	Enabled      bool    `env:"OTEL_ENABLED" env-default:"false"`
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	SampleRatio  float64 `env:"OTEL_SAMPLE_RATIO" env-default:"1"`
}

// TelemetryConfig returns the telemetry setup for serviceName.
func (c *Config) TelemetryConfig(serviceName, version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.App.Env,
		OTLPEndpoint:   c.Telemetry.OTLPEndpoint,
		Enabled:        c.Telemetry.Enabled,
		SampleRatio:    c.Telemetry.SampleRatio,
	}
}

// Load reads the optional env files into the process environment without
// overriding variables that are already set, then reads Config from the
// environment. With no files, ".env" is tried.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and provider requirements.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Gateway.Provider {
	case ProviderExpo:
	case ProviderFCM:
		if c.Gateway.FCMCredentialsFile == "" {
			return errors.New("FCM_CREDENTIALS_FILE is required when PUSH_PROVIDER=fcm")
		}
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q", c.Gateway.Provider)
	}

	if c.PubSub.Enabled() && c.PubSub.Subscription == "" {
		return errors.New("PUBSUB_SUBSCRIPTION is required when PUBSUB_PROJECT_ID is set")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
