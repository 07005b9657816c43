// Package config loads catbox configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"catbox/internal/num"
	"catbox/internal/storage"

	"gopkg.in/yaml.v3"
)

// Config contains all catbox configuration settings.
type Config struct {
	// Engine contains the default simulation parameters.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Storage contains settings for run persistence.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Artifacts contains settings for on-disk run artifacts.
	Artifacts ArtifactsConfig `json:"artifacts" yaml:"artifacts"`

	// Logging contains settings for CLI logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// EngineConfig holds the default parameters for new simulations.
type EngineConfig struct {
	// Seed drives all deterministic random streams of a simulation.
	Seed int64 `json:"seed" yaml:"seed"`

	// Precision is the decimal arithmetic precision in significant digits.
	Precision uint32 `json:"precision" yaml:"precision"`

	// Stubbornness scales the cat's urge to defy the controller.
	// Range: 0.0 to 1.0
	Stubbornness float64 `json:"stubbornness" yaml:"stubbornness"`

	// DurationSeconds is the default simulated run length.
	DurationSeconds int64 `json:"duration_seconds" yaml:"duration_seconds"`
}

// StorageConfig configures run persistence.
type StorageConfig struct {
	// Kind selects the persistence backend: "memory" (default) or "sqlite".
	Kind string `json:"kind" yaml:"kind"`

	// SQLitePath is the database file used when Kind is "sqlite".
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// ArtifactsConfig configures on-disk run artifacts.
type ArtifactsConfig struct {
	// Dir is the base directory for run artifacts and the run index.
	Dir string `json:"dir" yaml:"dir"`
}

// LoggingConfig configures CLI logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "trace", "debug", "info" (default),
	// "warn", or "error".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Seed:            42,
			Precision:       num.DefaultPrecision,
			Stubbornness:    0.7,
			DurationSeconds: 600,
		},
		Storage: StorageConfig{
			Kind: storage.DefaultStoreKind(),
		},
		Artifacts: ArtifactsConfig{
			Dir: "runs",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.catbox/config.yaml -> environment.
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".catbox", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.Precision == 0 {
		return fmt.Errorf("precision must be > 0")
	}

	if c.Engine.Stubbornness < 0 || c.Engine.Stubbornness > 1 {
		return fmt.Errorf("stubbornness must be between 0 and 1, got %f", c.Engine.Stubbornness)
	}

	if c.Engine.DurationSeconds < 1 {
		return fmt.Errorf("duration_seconds must be >= 1, got %d", c.Engine.DurationSeconds)
	}

	validKinds := map[string]bool{"": true, "memory": true, "sqlite": true}
	if !validKinds[c.Storage.Kind] {
		return fmt.Errorf("invalid store kind: %s (valid: memory, sqlite, or empty for default)", c.Storage.Kind)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CATBOX_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Engine.Seed = n
		}
	}

	if v := os.Getenv("CATBOX_PRECISION"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.Engine.Precision = uint32(n)
		}
	}

	if v := os.Getenv("CATBOX_STUBBORNNESS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Engine.Stubbornness = f
		}
	}

	if v := os.Getenv("CATBOX_DURATION_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Engine.DurationSeconds = n
		}
	}

	if v := os.Getenv("CATBOX_STORE_KIND"); v != "" {
		config.Storage.Kind = v
	}

	if v := os.Getenv("CATBOX_SQLITE_PATH"); v != "" {
		config.Storage.SQLitePath = v
	}

	if v := os.Getenv("CATBOX_ARTIFACTS_DIR"); v != "" {
		config.Artifacts.Dir = v
	}

	if v := os.Getenv("CATBOX_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
