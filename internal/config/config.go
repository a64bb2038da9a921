package config

import (
	"os"
	"strconv"

	"qcluster/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Output   OutputConfig
	Analysis AnalysisConfig
}

// DatabaseConfig holds results-store connection settings
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port string
}

// OutputConfig holds export defaults
type OutputConfig struct {
	Dir    string
	Prefix string
}

// AnalysisConfig holds runtime knobs that are not part of the statistical
// configuration surface
type AnalysisConfig struct {
	Workers int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server:   ServerConfig{Port: envOr("PORT", "8080")},
		Output: OutputConfig{
			Dir:    envOr("QCLUSTER_OUTPUT_DIR", "results"),
			Prefix: envOr("QCLUSTER_OUTPUT_PREFIX", "study"),
		},
	}
	cfg.Database.Enabled = cfg.Database.URL != ""

	workers, err := envInt("QCLUSTER_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, errors.ConfigInvalid("QCLUSTER_WORKERS must be >= 1")
	}
	cfg.Analysis.Workers = workers

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}
