package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration. Values come from the process
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	AllowedOrigins  []string      `mapstructure:"ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUD"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	// RedisURL enables the per-batch submission lock when set.
	RedisURL     string        `mapstructure:"REDIS_URL"`
	BatchLockTTL time.Duration `mapstructure:"BATCH_LOCK_TTL"`

	// RabbitMQURL enables domain event publishing when set.
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleTokenURL     string `mapstructure:"GOOGLE_TOKEN_URL"`
	CalendarEndpoint   string `mapstructure:"CALENDAR_ENDPOINT"`
	CalendarID         string `mapstructure:"CALENDAR_ID"`

	DefaultTimezone string  `mapstructure:"DEFAULT_TIMEZONE"`
	ProviderRate    float64 `mapstructure:"PROVIDER_RATE"`
	ProviderBurst   int64   `mapstructure:"PROVIDER_BURST"`

	// ProviderTimeout bounds each provider HTTP call; 0 leaves it to the transport.
	ProviderTimeout time.Duration `mapstructure:"PROVIDER_TIMEOUT"`

	ReceiptRetention time.Duration `mapstructure:"RECEIPT_RETENTION"`
	CleanupInterval  time.Duration `mapstructure:"CLEANUP_INTERVAL"`

	OTLPEndpoint     string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName      string        `mapstructure:"OTEL_SERVICE_NAME"`
	ServiceVersion   string        `mapstructure:"OTEL_SERVICE_VERSION"`
	TracesSampler    string        `mapstructure:"OTEL_TRACES_SAMPLER"`
	TracesSamplerArg float64       `mapstructure:"OTEL_TRACES_SAMPLER_ARG"`
	MetricsInterval  time.Duration `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`
}

var defaults = map[string]any{
	"PORT":             "8080",
	"ENV":              "production",
	"LOG_LEVEL":        "info",
	"ALLOWED_ORIGINS":  "http://localhost:3000",
	"SHUTDOWN_TIMEOUT": "15s",

	"AUTH_ISSUER":   "",
	"AUTH_JWKS_URL": "",
	"AUTH_AUD":      "",

	"DB_HOST":     "localhost",
	"DB_PORT":     "5432",
	"DB_USER":     "",
	"DB_PASSWORD": "",
	"DB_NAME":     "",
	"DB_SSLMODE":  "disable",

	"REDIS_URL":      "",
	"BATCH_LOCK_TTL": "2m",
	"RABBITMQ_URL":   "",

	"GOOGLE_CLIENT_ID":     "",
	"GOOGLE_CLIENT_SECRET": "",
	"GOOGLE_TOKEN_URL":     "https://oauth2.googleapis.com/token",
	"CALENDAR_ENDPOINT":    "",
	"CALENDAR_ID":          "primary",

	"DEFAULT_TIMEZONE": "Asia/Kolkata",
	"PROVIDER_RATE":    5,
	"PROVIDER_BURST":   10,
	"PROVIDER_TIMEOUT": "0s",

	"RECEIPT_RETENTION": "8760h",
	"CLEANUP_INTERVAL":  "24h",

	"OTEL_EXPORTER_OTLP_ENDPOINT":  "localhost:4317",
	"OTEL_SERVICE_NAME":            "reminder-service",
	"OTEL_SERVICE_VERSION":         "1.0.0",
	"OTEL_TRACES_SAMPLER":          "always_on",
	"OTEL_TRACES_SAMPLER_ARG":      0.1,
	"OTEL_METRICS_EXPORT_INTERVAL": "30s",
}

// Load reads configuration from .env (if present) and the environment,
// applies defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.AllowedOrigins = splitList(strings.Join(cfg.AllowedOrigins, ","))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.ProviderRate <= 0 {
		return errors.New("PROVIDER_RATE must be positive")
	}
	if c.ProviderTimeout < 0 {
		return errors.New("PROVIDER_TIMEOUT must not be negative")
	}
	if c.ProviderBurst < 1 {
		return errors.New("PROVIDER_BURST must be at least 1")
	}
	if c.ReceiptRetention <= 0 {
		return errors.New("RECEIPT_RETENTION must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// ValidateDatabase checks the settings needed to open the receipt store.
func (c *Config) ValidateDatabase() error {
	if c.DBHost == "" || c.DBUser == "" || c.DBPassword == "" || c.DBName == "" {
		return errors.New("missing required database environment variables")
	}
	return nil
}

// ValidateAPI checks the settings the HTTP service cannot start without.
func (c *Config) ValidateAPI() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.AuthIssuer == "" || c.AuthJWKSURL == "" {
		return errors.New("AUTH_ISSUER and AUTH_JWKS_URL are required")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	return nil
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// IsDevelopment reports whether the service runs in a local dev setup.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
