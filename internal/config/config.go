// Package config provides configuration management for the insights engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/insights-engine/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Graph    GraphConfig
	Sync     SyncConfig
	Sanity   SanityConfig
	Logging  LoggingConfig
	Crypto   CryptoConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	Host         string
	ClientRPS    int
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds freshness and response-cache configuration
type CacheConfig struct {
	// TTL is the maximum age at which a cached "today" record is still
	// served without refetching
	TTL time.Duration
	// ResponseTTL bounds the Redis response cache for consolidated payloads
	ResponseTTL time.Duration
}

// GraphConfig holds upstream analytics API configuration
type GraphConfig struct {
	PlatformHost      string
	BridgeHost        string
	RequestTimeout    time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	MaxPages          int
	RequestsPerSecond float64
}

// SyncConfig holds sync orchestrator configuration
type SyncConfig struct {
	// InsightsConcurrency bounds parallel per-post insight fetches
	InsightsConcurrency int
	// StoriesWindowDays is the trailing window stories are fetched for;
	// the upstream retains story data only briefly
	StoriesWindowDays int
	// LeaseMaxAge is the ceiling after which a held sync guard is stale
	LeaseMaxAge time.Duration
}

// SanityConfig holds per-metric maximum plausible daily values. A fetched
// value above its ceiling is dropped: the upstream API has been observed
// to return cumulative-lifetime values mislabeled as daily.
type SanityConfig struct {
	Ceilings map[string]int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CryptoConfig holds the credential encryption secret
type CryptoConfig struct {
	CredentialSecret string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ClientRPS:    getEnvAsInt("SERVER_CLIENT_RPS", 10),
			CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "insights_engine"),
				User:           getEnv("POSTGRES_USER", "insights"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			TTL:         getEnvAsDuration("CACHE_TTL", 60*time.Minute),
			ResponseTTL: getEnvAsDuration("CACHE_RESPONSE_TTL", 10*time.Minute),
		},
		Graph: GraphConfig{
			PlatformHost:      getEnv("GRAPH_PLATFORM_HOST", "https://graph.instagram.com"),
			BridgeHost:        getEnv("GRAPH_BRIDGE_HOST", "https://graph.facebook.com/v21.0"),
			RequestTimeout:    getEnvAsDuration("GRAPH_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvAsInt("GRAPH_MAX_RETRIES", 5),
			RetryBaseDelay:    getEnvAsDuration("GRAPH_RETRY_BASE_DELAY", time.Second),
			MaxPages:          getEnvAsInt("GRAPH_MAX_PAGES", 20),
			RequestsPerSecond: getEnvAsFloat("GRAPH_REQUESTS_PER_SECOND", 4.0),
		},
		Sync: SyncConfig{
			InsightsConcurrency: getEnvAsInt("SYNC_INSIGHTS_CONCURRENCY", 5),
			StoriesWindowDays:   getEnvAsInt("SYNC_STORIES_WINDOW_DAYS", 3),
			LeaseMaxAge:         getEnvAsDuration("SYNC_LEASE_MAX_AGE", 10*time.Minute),
		},
		Sanity: SanityConfig{
			Ceilings: loadSanityCeilings(),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Crypto: CryptoConfig{
			CredentialSecret: getEnv("CREDENTIAL_SECRET", ""),
		},
	}

	return config, nil
}

// loadSanityCeilings builds the per-metric ceiling table. Defaults can be
// overridden per metric via SANITY_CEILING_<METRIC>.
func loadSanityCeilings() map[string]int64 {
	defaults := map[string]int64{
		types.MetricReach:           500_000,
		types.MetricViews:           2_000_000,
		types.MetricProfileViews:    200_000,
		types.MetricAccountsEngaged: 500_000,
		types.MetricWebsiteClicks:   50_000,
		types.MetricContactClicks:   50_000,
		types.MetricFollowerCount:   50_000_000,
	}

	ceilings := make(map[string]int64, len(defaults))
	for metric, def := range defaults {
		key := "SANITY_CEILING_" + strings.ToUpper(metric)
		ceilings[metric] = getEnvAsInt64(key, def)
	}

	return ceilings
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
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float64 with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
