package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv                 string
	LogLevel               slog.Level
	ApiServicePort         string
	PostgreSQLHost         string
	PostgreSQLPort         int64
	PostgreSQLUser         string
	PostgreSQLPassword     string
	PostgreSQLDatabase     string
	JWTSecret              string
	AccessTokenExpiration  int64
	RefreshTokenExpiration int64
	RedisHost              string
	RedisPort              int64
	RedisPassword          string
	RedisDB                int64
	UsageStatsTTL          int64 // Cached usage stats TTL in seconds
	EngineStepDelayMS      int64 // Base per-stage delay of the simulated engines
	ShutdownTimeout        int64 // Graceful shutdown timeout in seconds
}

func LoadConfig() *Config {
	// Best-effort: a missing .env is fine, real env vars win either way
	_ = godotenv.Load()

	return &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),                  // Default development
		LogLevel:               getLogLevel(),                                     // Default INFO
		ApiServicePort:         getEnv("API_SERVICE_PORT", "8080"),                // Default 8080
		PostgreSQLHost:         getEnv("POSTGRESQL_HOST", "db"),                   // Default db
		PostgreSQLPort:         getEnvAsInt64("POSTGRESQL_PORT", 5432),            // Default 5432
		PostgreSQLUser:         getEnv("POSTGRESQL_USER", "trayyy_user"),          // Default user
		PostgreSQLPassword:     getEnv("POSTGRESQL_PASSWORD", "trayyy_password"),  // Default password
		PostgreSQLDatabase:     getEnv("POSTGRESQL_DATABASE", "trayyy_db"),        // Default database name
		JWTSecret:              getEnv("JWT_SECRET", "trayyy_secret"),             // Default secret key
		AccessTokenExpiration:  getEnvAsInt64("ACCESS_TOKEN_EXPIRATION", 900),     // Default 15 minutes
		RefreshTokenExpiration: getEnvAsInt64("REFRESH_TOKEN_EXPIRATION", 604800), // Default 7 days
		RedisHost:              getEnv("REDIS_HOST", "redis"),                     // Default redis
		RedisPort:              getEnvAsInt64("REDIS_PORT", 6379),                 // Default 6379
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),                      // Default empty
		RedisDB:                getEnvAsInt64("REDIS_DATABASE", 0),                // Default 0
		UsageStatsTTL:          getEnvAsInt64("USAGE_STATS_TTL", 60),              // Default 1 minute
		EngineStepDelayMS:      getEnvAsInt64("ENGINE_STEP_DELAY_MS", 150),        // Default 150ms per stage
		ShutdownTimeout:        getEnvAsInt64("SHUTDOWN_TIMEOUT", 15),             // Default 15 seconds
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return fallback
}

func getLogLevel() slog.Level {
	levelStr := getEnv("LOG_LEVEL", "INFO")

	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedisAddr returns the host:port address of the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
