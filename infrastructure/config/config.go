package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence API. The canvas backend does not own storage; it
	// talks to the platform persistence service over HTTP. An empty
	// base URL selects the in-memory store, for development and tests.
	PersistenceBaseURL string
	PersistenceAPIKey  string
	PersistenceTimeout time.Duration

	// Todo service, queried for the external item count that feeds the
	// quota check. Empty base URL disables external counting.
	TodoServiceBaseURL string

	// Dynamic limits file watched for tier changes at runtime
	LimitsFile string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		PersistenceBaseURL: getEnv("PERSISTENCE_BASE_URL", ""),
		PersistenceAPIKey:  getEnv("PERSISTENCE_API_KEY", ""),
		PersistenceTimeout: time.Duration(getEnvInt("PERSISTENCE_TIMEOUT_MS", 10000)) * time.Millisecond,

		TodoServiceBaseURL: getEnv("TODO_SERVICE_BASE_URL", ""),

		LimitsFile: getEnv("LIMITS_FILE", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "funnel-backend"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.PersistenceBaseURL == "" {
			return fmt.Errorf("PERSISTENCE_BASE_URL is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
