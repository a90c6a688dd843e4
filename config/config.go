package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradejournal/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Journal
	UserID         int64          // Journal user for single-user CLI runs
	MarketTimezone *time.Location // Exchange timezone for market-session classification
	BuildInterval  time.Duration  // How often the long-running mode rebuilds trades

	// Broker sync (Binance)
	BrokerAPIKey    string
	BrokerSecretKey string
	BrokerTestnet   bool
	SyncSymbols     []string      // Symbols to pull order history for
	SyncLookback    time.Duration // How far back the first sync reaches

	// Logging
	LogLevel logger.LogLevel
}

// BrokerConfigured reports whether broker-sync credentials are present.
func (c *Config) BrokerConfigured() bool {
	return c.BrokerAPIKey != "" && c.BrokerSecretKey != ""
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/tradejournal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Journal
	userID, err := getEnvAsIntRequired("USER_ID", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid USER_ID: %v", err))
	} else if userID <= 0 {
		errs = append(errs, "USER_ID must be positive")
	}
	cfg.UserID = int64(userID)

	tzName := getEnv("MARKET_TIMEZONE", "America/New_York")
	cfg.MarketTimezone, err = time.LoadLocation(tzName)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MARKET_TIMEZONE '%s': %v", tzName, err))
	}

	buildIntervalMinutes := getEnvAsInt("BUILD_INTERVAL_MINUTES", 15)
	if buildIntervalMinutes <= 0 {
		errs = append(errs, "BUILD_INTERVAL_MINUTES must be positive")
	}
	cfg.BuildInterval = time.Duration(buildIntervalMinutes) * time.Minute

	// Broker sync. Credentials are optional: without them the journal
	// runs on CSV uploads only.
	cfg.BrokerAPIKey = getEnv("BROKER_API_KEY", "")
	cfg.BrokerSecretKey = getEnv("BROKER_API_SECRET", "")
	cfg.BrokerTestnet = getEnvAsBool("BROKER_TESTNET", true) // Default to testnet for safety

	if symbols := getEnv("SYNC_SYMBOLS", ""); symbols != "" {
		for _, s := range strings.Split(symbols, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				cfg.SyncSymbols = append(cfg.SyncSymbols, s)
			}
		}
	}
	if cfg.BrokerConfigured() && len(cfg.SyncSymbols) == 0 {
		errs = append(errs, "SYNC_SYMBOLS must be set when broker credentials are configured")
	}

	lookbackDays := getEnvAsInt("SYNC_LOOKBACK_DAYS", 30)
	if lookbackDays <= 0 {
		errs = append(errs, "SYNC_LOOKBACK_DAYS must be positive")
	}
	cfg.SyncLookback = time.Duration(lookbackDays) * 24 * time.Hour

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
