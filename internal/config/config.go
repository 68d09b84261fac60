// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full server configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Presence      PresenceConfig
	Moderation    ModerationConfig
	Notifications NotificationConfig
	Telemetry     TelemetryConfig
	Log           LogConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	JWTSecret   []byte
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	URL    string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
}

type PresenceConfig struct {
	Store          string // "database", "redis" or "memory"
	SessionTTL     time.Duration
	VisibleLimit   int
	HeartbeatLimit int // heartbeats per session per minute, 0 disables
}

type ModerationConfig struct {
	RulesFile string
}

type NotificationConfig struct {
	Workers    int
	BufferSize int
	SESRegion  string
	FromEmail  string
	FromName   string
	BaseURL    string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SamplingRate float64
}

type LogConfig struct {
	Level string
	File  string
}

// Load reads .env (when present) and the process environment.
// JWT_SECRET is the only required variable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvOrDefault("PORT", "8787"),
			Environment: getEnvOrDefault("ENVIRONMENT", "development"),
			JWTSecret:   []byte(secret),
			CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			Enabled:  os.Getenv("REDIS_HOST") != "",
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Presence: PresenceConfig{
			Store:          getEnvOrDefault("PRESENCE_STORE", "database"),
			SessionTTL:     getDuration("PRESENCE_SESSION_TTL", 5*time.Minute),
			VisibleLimit:   getInt("PRESENCE_VISIBLE_LIMIT", 20),
			HeartbeatLimit: getInt("PRESENCE_HEARTBEAT_LIMIT", 10),
		},
		Moderation: ModerationConfig{
			RulesFile: os.Getenv("MODERATION_RULES_FILE"),
		},
		Notifications: NotificationConfig{
			Workers:    getInt("NOTIFY_WORKERS", 4),
			BufferSize: getInt("NOTIFY_BUFFER", 256),
			SESRegion:  os.Getenv("AWS_REGION"),
			FromEmail:  os.Getenv("NOTIFY_FROM_EMAIL"),
			FromName:   getEnvOrDefault("NOTIFY_FROM_NAME", "ProHub Nexus"),
			BaseURL:    getEnvOrDefault("BASE_URL", "http://localhost:3000"),
		},
		Telemetry: loadTelemetry(),
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
			File:  getEnvOrDefault("LOG_FILE", "server.log"),
		},
	}

	switch cfg.Presence.Store {
	case "database", "redis", "memory":
	default:
		return nil, fmt.Errorf("PRESENCE_STORE must be database, redis or memory, got %q", cfg.Presence.Store)
	}
	if cfg.Presence.Store == "redis" && !cfg.Redis.Enabled {
		return nil, fmt.Errorf("PRESENCE_STORE=redis requires REDIS_HOST")
	}

	return cfg, nil
}

// EmailEnabled reports whether moderation notices should also go out by email
func (c NotificationConfig) EmailEnabled() bool {
	return c.SESRegion != "" && c.FromEmail != ""
}

// LoadDatabase reads only the database settings, for maintenance commands
// that never serve requests
func LoadDatabase() (DatabaseConfig, string) {
	_ = godotenv.Load()
	return loadDatabase(), getEnvOrDefault("ENVIRONMENT", "development")
}

// LoadTelemetry reads only the tracing settings
func LoadTelemetry() TelemetryConfig {
	_ = godotenv.Load()
	return loadTelemetry()
}

func loadTelemetry() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		SamplingRate: getFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

func loadDatabase() DatabaseConfig {
	driver := getEnvOrDefault("DB_DRIVER", "postgres")
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return DatabaseConfig{Driver: driver, URL: url}
	}

	if driver == "sqlite" {
		return DatabaseConfig{Driver: driver, URL: getEnvOrDefault("DB_PATH", "nexus.db")}
	}

	// Fallback to individual components
	url := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "postgres"),
		getEnvOrDefault("DB_PASSWORD", ""),
		getEnvOrDefault("DB_NAME", "nexus"),
		getEnvOrDefault("DB_SSLMODE", "disable"),
	)
	return DatabaseConfig{Driver: driver, URL: url}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
