package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Redis     RedisConfig               `mapstructure:"redis"`
	Auth      AuthConfig                `mapstructure:"auth"`
	Log       LogConfig                 `mapstructure:"log"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Routing   RoutingConfig             `mapstructure:"routing"`
	Webhook   WebhookConfig             `mapstructure:"webhook"`
	Renewal   RenewalConfig             `mapstructure:"renewal"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig configures validation of admin-surface tokens minted by the
// external auth service.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// ProviderConfig holds per-provider adapter settings.
type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Active        bool          `mapstructure:"active"`
}

// RoutingConfig holds platform-level routing settings.
type RoutingConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
}

// WebhookConfig controls the ingestion retry policy.
type WebhookConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// RenewalConfig controls the renewal scheduler.
type RenewalConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	GracePeriod  time.Duration `mapstructure:"grace_period"` // for provider-managed billing
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PAYCORE.
// Nested keys use underscore: PAYCORE_DATABASE_HOST, PAYCORE_AUTH_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_core")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "clinic-platform")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("routing.default_provider", "KRXPAY")
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.base_delay", "30s")
	v.SetDefault("webhook.max_delay", "1h")
	v.SetDefault("webhook.dedup_ttl", "24h")
	v.SetDefault("webhook.poll_interval", "15s")
	v.SetDefault("webhook.batch_size", 100)
	v.SetDefault("renewal.poll_interval", "1m")
	v.SetDefault("renewal.concurrency", 10)
	v.SetDefault("renewal.batch_size", 200)
	v.SetDefault("renewal.max_attempts", 5)
	v.SetDefault("renewal.base_delay", "2s")
	v.SetDefault("renewal.max_delay", "60s")
	v.SetDefault("renewal.grace_period", "72h")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PAYCORE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Provider returns the configuration for one provider code, with a zero
// value and false when absent.
func (c *Config) Provider(code string) (ProviderConfig, bool) {
	pc, ok := c.Providers[strings.ToLower(code)]
	return pc, ok
}
