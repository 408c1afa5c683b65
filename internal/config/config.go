package config

import (
	"os"
	"strconv"

	"gocausal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Estimation EstimationConfig
}

// DatabaseConfig holds database connection settings. Persistence is
// optional: an empty URL runs the service without a result store.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// EstimationConfig holds the default estimation options applied when a
// request leaves them unset
type EstimationConfig struct {
	PositivityEpsilon      float64
	MaxClippedFraction     float64
	ExtremeWeightThreshold float64
	MatchRatio             int
	BootstrapWorkers       int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Estimation: EstimationConfig{
			PositivityEpsilon:      getEnvFloatOrDefault("POSITIVITY_EPSILON", 1e-6),
			MaxClippedFraction:     getEnvFloatOrDefault("MAX_CLIPPED_FRACTION", 0.02),
			ExtremeWeightThreshold: getEnvFloatOrDefault("EXTREME_WEIGHT_THRESHOLD", 10.0),
			MatchRatio:             getEnvIntOrDefault("MATCH_RATIO", 1),
			BootstrapWorkers:       getEnvIntOrDefault("BOOTSTRAP_WORKERS", 0),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	e := config.Estimation
	if e.PositivityEpsilon <= 0 || e.PositivityEpsilon >= 0.5 {
		return errors.ConfigInvalid("POSITIVITY_EPSILON must lie in (0, 0.5)")
	}
	if e.MaxClippedFraction < 0 || e.MaxClippedFraction > 1 {
		return errors.ConfigInvalid("MAX_CLIPPED_FRACTION must lie in [0, 1]")
	}
	if e.ExtremeWeightThreshold <= 0 {
		return errors.ConfigInvalid("EXTREME_WEIGHT_THRESHOLD must be positive")
	}
	if e.MatchRatio < 1 {
		return errors.ConfigInvalid("MATCH_RATIO must be >= 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
