// Package config loads process configuration from environment variables.
// Everything is read once at startup and passed down explicitly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported capacity store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// Config is the full service configuration.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`

	Store        StoreConfig
	Registration RegistrationConfig
	Fields       FieldsConfig
	Kafka        KafkaConfig
	OTel         OTelConfig
}

// StoreConfig selects and configures the capacity store.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// NegateEventKey stores documents under the negated event id. Some older
	// deployments addressed events that way; new ones should leave it off.
	NegateEventKey bool `env:"NEGATE_EVENT_KEY" envDefault:"false"`

	RetryAttempts uint `env:"STORE_RETRY_ATTEMPTS" envDefault:"3"`

	Postgres PostgresConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	SQLite   SQLiteConfig   `envPrefix:"SQLITE_"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	DBName   string `env:"NAME" envDefault:"masterclasses"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN builds a libpq-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// SQLiteConfig holds the embedded store location.
type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"reservations.db"`
}

// RegistrationConfig points at the external participant registration service.
type RegistrationConfig struct {
	URL     string        `env:"REGISTRATION_URL" envDefault:"https://depreg.ew.r.appspot.com"`
	Timeout time.Duration `env:"REGISTRATION_TIMEOUT" envDefault:"10s"`
}

// FieldsConfig names the form fields the service interprets. Every other
// field is forwarded untouched.
type FieldsConfig struct {
	EventID           string `env:"EVENT_ID_FIELD" envDefault:"eventId"`
	Resources         string `env:"RESOURCE_FIELD" envDefault:"мастер-класс"`
	ResourceNotNeeded string `env:"RESOURCE_NOT_NEEDED_FIELD" envDefault:"мастер-класс_не_нужен"`
}

// KafkaConfig enables capacity leak reporting when Brokers is set.
type KafkaConfig struct {
	Brokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	LeakTopic string   `env:"KAFKA_LEAK_TOPIC" envDefault:"capacity.leaks"`
}

// Enabled reports whether leak reporting should be wired.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// OTelConfig enables trace export when Endpoint is set.
type OTelConfig struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"masterclass-reservation"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.RetryAttempts == 0 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Registration.URL == "" {
		return fmt.Errorf("REGISTRATION_URL is required")
	}
	if c.Fields.Resources == "" || c.Fields.EventID == "" {
		return fmt.Errorf("RESOURCE_FIELD and EVENT_ID_FIELD must not be empty")
	}
	return nil
}
