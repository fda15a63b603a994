// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port string

	// DBDriver is DriverSQLite or DriverPostgres.
	DBDriver    string
	DBPath      string
	DatabaseURL string

	SettlementDelay         time.Duration
	RequirePayerParticipant bool
	StoreRetryAttempts      int
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration, applying defaults for unset variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("SERVER_PORT", "8080"),
		DBDriver:    getEnv("DB_DRIVER", DriverSQLite),
		DBPath:      getEnv("DB_PATH", "./data/ledger.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	delay, err := time.ParseDuration(getEnv("SETTLEMENT_DELAY", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_DELAY: %w", err)
	}
	if delay < 0 {
		return nil, fmt.Errorf("SETTLEMENT_DELAY must not be negative, got %s", delay)
	}
	cfg.SettlementDelay = delay

	cfg.RequirePayerParticipant, err = strconv.ParseBool(getEnv("REQUIRE_PAYER_PARTICIPANT", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUIRE_PAYER_PARTICIPANT: %w", err)
	}

	cfg.StoreRetryAttempts, err = strconv.Atoi(getEnv("STORE_RETRY_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_RETRY_ATTEMPTS: %w", err)
	}
	if cfg.StoreRetryAttempts < 1 {
		return nil, fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1, got %d", cfg.StoreRetryAttempts)
	}

	return cfg, nil
}
