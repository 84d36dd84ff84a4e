package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agendly/agendly/pkg/observability"
	"github.com/agendly/agendly/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.ConnectionConfig

	// Redis configuration (optional, backs the upgrade locks)
	Redis RedisConfig

	// Billing configuration
	Billing BillingConfig

	// Plan catalog configuration
	Plans PlansConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds Redis settings. An empty URL disables distributed
// locking; the orchestrator then relies on the database constraint alone.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// BillingConfig holds payment processor settings. An empty SecretKey puts
// the engine in demo mode: upgrades succeed without external calls.
type BillingConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string
	CheckoutRedirectURL string
	SyncSchedule        string
}

// DemoMode reports whether the processor is unconfigured
func (c BillingConfig) DemoMode() bool {
	return c.StripeSecretKey == ""
}

// PlansConfig holds plan catalog settings
type PlansConfig struct {
	// CatalogFile is an optional YAML file overriding the built-in plans.
	// When set, the file is watched and hot-reloaded.
	CatalogFile string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Billing:       loadBillingConfig(),
		Plans:         loadPlansConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AGENDLY_HOST", "0.0.0.0"),
		Port:            getEnv("AGENDLY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("AGENDLY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AGENDLY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AGENDLY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AGENDLY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("AGENDLY_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		URL:         getEnv("AGENDLY_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("AGENDLY_POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("AGENDLY_POSTGRES_MIN_CONNS", 2),
		Timeout:     getEnvDuration("AGENDLY_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("AGENDLY_POSTGRES_MAX_LIFETIME", 1*time.Hour),
		MaxIdleTime: getEnvDuration("AGENDLY_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("AGENDLY_REDIS_URL", ""),
		Password:   getEnv("AGENDLY_REDIS_PASSWORD", ""),
		DB:         getEnvInt("AGENDLY_REDIS_DB", 0),
		MaxRetries: getEnvInt("AGENDLY_REDIS_MAX_RETRIES", 0),
		PoolSize:   getEnvInt("AGENDLY_REDIS_POOL_SIZE", 0),
	}
}

// loadBillingConfig loads payment processor configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		StripeSecretKey:     getEnv("AGENDLY_STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("AGENDLY_STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getEnv("AGENDLY_STRIPE_BASE_URL", ""),
		CheckoutRedirectURL: getEnv("AGENDLY_CHECKOUT_REDIRECT_URL", ""),
		SyncSchedule:        getEnv("AGENDLY_SYNC_SCHEDULE", "@every 5m"),
	}
}

// loadPlansConfig loads plan catalog configuration from environment
func loadPlansConfig() PlansConfig {
	return PlansConfig{
		CatalogFile: getEnv("AGENDLY_PLAN_CATALOG_FILE", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("AGENDLY_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("AGENDLY_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Webhook secret is only needed when a processor is configured; demo
	// mode never receives webhooks.
	if !c.Billing.DemoMode() && c.Billing.StripeWebhookSecret == "" {
		return fmt.Errorf("stripe webhook secret is required when a stripe secret key is set")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
