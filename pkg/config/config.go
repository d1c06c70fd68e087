package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DefaultSigningKey is the development signing key used when JWT_SIGNING_KEY is unset
const DefaultSigningKey = "defaultsecretkey"

// ErrDefaultSigningKey is returned when production would sign with DefaultSigningKey
var ErrDefaultSigningKey = errors.New("JWT_SIGNING_KEY must be set in production")

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Env             string
	ShutdownTimeout time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// AuthConfig controls whether writes require a signed-in user
type AuthConfig struct {
	Required   bool
	CookieName string
}

// CacheConfig holds the optional Redis cache configuration.
// An empty RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// DatabaseConfig points at the YAML database configuration
type DatabaseConfig struct {
	ConfigPath string
	URL        string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Auth        AuthConfig
	Cache       CacheConfig
	Database    DatabaseConfig
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{
		ServiceName: serviceName,
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "3000"),
			Env:             getEnv("APP_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", DefaultSigningKey),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "things"),
		},
		Auth: AuthConfig{
			Required:   getEnvAsBool("AUTH_REQUIRED", true),
			CookieName: getEnv("SESSION_COOKIE_NAME", "_thing_session"),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			TTL:           getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Database: DatabaseConfig{
			ConfigPath: getEnv("DATABASE_CONFIG", "config/database.yml"),
			URL:        getEnv("DATABASE_URL", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings that must not reach a running server. Call it again
// after overriding fields loaded from the environment.
func (c *Config) Validate() error {
	if c.Server.Env == "production" && c.JWT.SigningKey == DefaultSigningKey {
		return ErrDefaultSigningKey
	}
	return nil
}

// DatabaseSettings resolves the database settings for the configured environment
func (c *Config) DatabaseSettings() (*DatabaseSettings, error) {
	return LoadDatabaseSettings(c.Database.ConfigPath, c.Server.Env, c.Database.URL)
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("server_port", c.Server.Port),
		zap.String("database_config", c.Database.ConfigPath),
		zap.Bool("auth_required", c.Auth.Required),
		zap.Bool("cache_enabled", c.Cache.RedisAddr != ""),
	}
}

// getEnv returns the variable or defaultValue when it is unset
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// envAs parses the variable with parse. Unset or malformed values give defaultValue.
func envAs[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	value, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	return envAs(key, defaultValue, strconv.Atoi)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return envAs(key, defaultValue, strconv.ParseBool)
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	return envAs(key, defaultValue, time.ParseDuration)
}

// parseLogLevel maps a textual level to a gorm log level
func parseLogLevel(value string, defaultValue logger.LogLevel) logger.LogLevel {
	switch value {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
