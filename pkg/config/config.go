package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Logging; empty values use the per-environment defaults
	LogLevel  string
	LogFormat string

	// Storage backend: postgres or memory
	Storage string

	// Database configuration
	DatabaseURL        string
	DBMaxConns         int
	DBMinConns         int
	DBStatementTimeout time.Duration

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// JWT configuration
	JWTSecret string

	// Currency registered on first start when the currency table is empty
	DefaultCurrency string

	// Exchange rate ingestion
	ExchangeConfigPath string
	SchedulerEnabled   bool

	// Requests per second allowed per client IP
	RateLimitRPS int

	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := fromEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadStorage loads the environment for tools that only touch storage and
// the exchange pipeline; HTTP settings are not validated.
func LoadStorage() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		LogFormat:          getEnv("LOG_FORMAT", ""),
		Storage:            strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         getEnvAsInt("DB_MAX_CONNS", 0),
		DBMinConns:         getEnvAsInt("DB_MIN_CONNS", 0),
		DBStatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DefaultCurrency:    strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		ExchangeConfigPath: getEnv("EXCHANGE_CONFIG_PATH", "config/exchange.yaml"),
		SchedulerEnabled:   getEnvAsBool("SCHEDULER_ENABLED", true),
		RateLimitRPS:       getEnvAsInt("RATE_LIMIT_RPS", 10),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=postgres")
		}
	case StorageMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORAGE=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if c.DBMinConns > 0 && c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}

	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter currency code")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Logger returns the logging options for this configuration
func (c *Config) Logger() logger.Options {
	return logger.Options{Env: c.Env, Format: c.LogFormat, Level: c.LogLevel}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration parses a Go duration such as 30s
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
