// Package config provides service configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abhisek/widen/internal/store"
)

// Config holds the server-side settings. LLM provider settings live in
// internal/llm and are loaded separately.
type Config struct {
	Port             string
	DBPath           string
	LogLevel         string
	DeadlineInterval time.Duration
	RecoveryInterval time.Duration
}

// Load reads configuration from WIDEN_* environment variables.
func Load() (*Config, error) {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             getEnv("WIDEN_PORT", "8080"),
		DBPath:           dbPath,
		LogLevel:         getEnv("WIDEN_LOG_LEVEL", "info"),
		DeadlineInterval: getEnvDuration("WIDEN_SWEEP_DEADLINE_INTERVAL", 24*time.Hour),
		RecoveryInterval: getEnvDuration("WIDEN_SWEEP_RECOVERY_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("WIDEN_PORT cannot be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("WIDEN_PORT must be a number: %q", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("WIDEN_DB cannot be empty")
	}
	if c.DeadlineInterval <= 0 || c.RecoveryInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
