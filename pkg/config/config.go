// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv        string
	LogLevel      string
	OperatorID    string
	EncryptionKey string

	// Database
	DatabaseURL      string
	DatabaseDriver   string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis; empty keeps route locks in process.
	RedisURL string

	// RabbitMQ; empty delivers events in process.
	RabbitMQURL  string
	AbsenceQueue string

	// Outbox
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxRetries    int
	OutboxRetentionDays int

	// Servers
	WorkerHealthAddr   string
	APIAddr            string
	CORSAllowedOrigins []string
	MCPAddr            string
	MCPAuthToken       string

	// Routing
	DelayThreshold     time.Duration
	AutoCompleteRoutes bool
	RouteLockTTL       time.Duration

	// Fleet directory; an empty URL reads drivers and vehicles from the database.
	FleetDirectoryURL       string
	FleetClientID           string
	FleetClientSecret       string
	FleetTokenURL           string
	FleetScopes             []string
	FleetBreakerMaxFailures int
	FleetBreakerTimeout     time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		OperatorID:    getEnv("CONVOY_OPERATOR_ID", ""),
		EncryptionKey: getEnv("CONVOY_ENCRYPTION_KEY", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseDriver:   getEnv("DATABASE_DRIVER", "auto"),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL:     getEnv("REDIS_URL", ""),
		RabbitMQURL:  getEnv("RABBITMQ_URL", ""),
		AbsenceQueue: getEnv("ABSENCE_QUEUE", "convoy.absences"),

		OutboxPollInterval:  getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:     getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:    getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays: getIntEnv("OUTBOX_RETENTION_DAYS", 7),

		WorkerHealthAddr:   getEnv("WORKER_HEALTH_ADDR", ":8081"),
		APIAddr:            getEnv("API_ADDR", ":8080"),
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MCPAddr:            getEnv("MCP_ADDR", ":8090"),
		MCPAuthToken:       getEnv("MCP_AUTH_TOKEN", ""),

		DelayThreshold:     getDurationEnv("CONVOY_DELAY_THRESHOLD", 0),
		AutoCompleteRoutes: getBoolEnv("CONVOY_AUTO_COMPLETE_ROUTES", true),
		RouteLockTTL:       getDurationEnv("CONVOY_ROUTE_LOCK_TTL", 10*time.Second),

		FleetDirectoryURL:       getEnv("FLEET_DIRECTORY_URL", ""),
		FleetClientID:           getEnv("FLEET_CLIENT_ID", ""),
		FleetClientSecret:       getEnv("FLEET_CLIENT_SECRET", ""),
		FleetTokenURL:           getEnv("FLEET_TOKEN_URL", ""),
		FleetScopes:             getListEnv("FLEET_SCOPES", nil),
		FleetBreakerMaxFailures: getIntEnv("FLEET_BREAKER_MAX_FAILURES", 5),
		FleetBreakerTimeout:     getDurationEnv("FLEET_BREAKER_TIMEOUT", 30*time.Second),
	}

	if cfg.DelayThreshold < 0 {
		return nil, fmt.Errorf("CONVOY_DELAY_THRESHOLD must not be negative: %s", cfg.DelayThreshold)
	}
	if cfg.OutboxBatchSize <= 0 {
		return nil, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive: %d", cfg.OutboxBatchSize)
	}
	return cfg, nil
}

// LocalMode reports whether the process runs against SQLite without a broker
// or shared lock store being required.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == "" || c.DatabaseDriver == "sqlite"
}

// Operator parses CONVOY_OPERATOR_ID. CLI and MCP mutations need it.
func (c *Config) Operator() (uuid.UUID, error) {
	if c.OperatorID == "" {
		return uuid.Nil, fmt.Errorf("CONVOY_OPERATOR_ID is not set")
	}
	id, err := uuid.Parse(c.OperatorID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("CONVOY_OPERATOR_ID: %w", err)
	}
	return id, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, dropping blanks.
func getListEnv(key string, defaultValue []string) []string {
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
