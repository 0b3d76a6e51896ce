package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// BridgeMode selects how the marketing backend is invoked.
type BridgeMode string

const (
	// BridgeModeLocal runs queries against the in-process query engine.
	BridgeModeLocal BridgeMode = "local"

	// BridgeModeHTTP forwards queries to a remote marketing service over HTTP.
	BridgeModeHTTP BridgeMode = "http"
)

// Config is the process-wide configuration. It is built once at startup and
// passed by reference into every constructor; nothing mutates it afterwards.
type Config struct {
	Port    string
	GinMode string

	// Bridge transport selection
	BridgeMode BridgeMode

	// Remote marketing service (http mode)
	MarketingAPIURL string
	MarketingAPIKey string
	RequestTimeout  time.Duration
	ConnectTimeout  time.Duration

	// Local query engine (local mode)
	MarketingDatabaseDSN string

	// How many customer records a single response envelope may carry.
	// The result count is never truncated, only the record list.
	ResultDisplayLimit int

	// HTTP Transport Connection Pool
	UpstreamMaxIdleConns        int
	UpstreamMaxIdleConnsPerHost int
	UpstreamIdleConnTimeout     int // in seconds

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string

	// Preset filter catalog, loaded from the config file when present.
	Filters []PresetFilter
}

// Load reads the configuration from the environment (and an optional .env
// file) exactly once. The preset filter catalog comes from an optional YAML
// file pointed to by CONFIG_FILE; built-in defaults apply when it is absent.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		BridgeMode: BridgeMode(getEnvOrDefault("MARKETING_MODE", "local")),

		// Remote marketing service
		MarketingAPIURL: getEnvOrDefault("MARKETING_API_URL", "http://localhost:5001"),
		MarketingAPIKey: getEnvOrDefault("MARKETING_API_KEY", ""),
		RequestTimeout:  getEnvAsDuration("MARKETING_REQUEST_TIMEOUT", 30*time.Second),
		ConnectTimeout:  getEnvAsDuration("MARKETING_CONNECT_TIMEOUT", 5*time.Second),

		// Local query engine
		MarketingDatabaseDSN: getEnvOrDefault("MARKETING_DATABASE_DSN", "file:marketing?mode=memory&cache=shared"),

		ResultDisplayLimit: getEnvAsInt("RESULT_DISPLAY_LIMIT", 20),

		// HTTP Transport Connection Pool
		UpstreamMaxIdleConns:        getEnvAsInt("UPSTREAM_MAX_IDLE_CONNS", 100),
		UpstreamMaxIdleConnsPerHost: getEnvAsInt("UPSTREAM_MAX_IDLE_CONNS_PER_HOST", 50),
		UpstreamIdleConnTimeout:     getEnvAsInt("UPSTREAM_IDLE_CONN_TIMEOUT_SECONDS", 90),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if cfg.BridgeMode != BridgeModeLocal && cfg.BridgeMode != BridgeModeHTTP {
		return nil, fmt.Errorf("invalid MARKETING_MODE %q: must be %q or %q",
			cfg.BridgeMode, BridgeModeLocal, BridgeModeHTTP)
	}

	if cfg.BridgeMode == BridgeModeHTTP && cfg.MarketingAPIKey == "" {
		log.Println("Warning: Marketing API key is missing. Please set MARKETING_API_KEY environment variable.")
	}

	// Load the preset filter catalog from a configuration file when one is
	// configured. The built-in catalog is used otherwise.
	cfg.Filters = DefaultFilters()

	if configFilePath := os.Getenv("CONFIG_FILE"); configFilePath != "" {
		log.Printf("Loading config file: %v", configFilePath)

		configFile, err := os.Open(configFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer configFile.Close()

		filters, err := LoadFiltersFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}

		cfg.Filters = filters
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
