package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Engine.Seed != 42 {
		t.Errorf("expected Seed 42, got %d", config.Engine.Seed)
	}
	if config.Engine.Precision != 50 {
		t.Errorf("expected Precision 50, got %d", config.Engine.Precision)
	}
	if config.Engine.Stubbornness != 0.7 {
		t.Errorf("expected Stubbornness 0.7, got %f", config.Engine.Stubbornness)
	}
	if config.Engine.DurationSeconds != 600 {
		t.Errorf("expected DurationSeconds 600, got %d", config.Engine.DurationSeconds)
	}
	if config.Storage.Kind != "memory" {
		t.Errorf("expected Storage.Kind 'memory', got '%s'", config.Storage.Kind)
	}
	if config.Artifacts.Dir != "runs" {
		t.Errorf("expected Artifacts.Dir 'runs', got '%s'", config.Artifacts.Dir)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
engine:
  seed: 7
  stubbornness: 0.2

storage:
  kind: sqlite
  sqlite_path: cat.db

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Engine.Seed != 7 {
		t.Errorf("expected Seed 7, got %d", config.Engine.Seed)
	}
	if config.Engine.Stubbornness != 0.2 {
		t.Errorf("expected Stubbornness 0.2, got %f", config.Engine.Stubbornness)
	}
	if config.Storage.Kind != "sqlite" {
		t.Errorf("expected Storage.Kind 'sqlite', got '%s'", config.Storage.Kind)
	}
	if config.Storage.SQLitePath != "cat.db" {
		t.Errorf("expected SQLitePath 'cat.db', got '%s'", config.Storage.SQLitePath)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}

	// Unset fields keep their defaults.
	if config.Engine.Precision != 50 {
		t.Errorf("expected default Precision 50, got %d", config.Engine.Precision)
	}
	if config.Engine.DurationSeconds != 600 {
		t.Errorf("expected default DurationSeconds 600, got %d", config.Engine.DurationSeconds)
	}
	if config.Artifacts.Dir != "runs" {
		t.Errorf("expected default Artifacts.Dir 'runs', got '%s'", config.Artifacts.Dir)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CATBOX_SEED", "7")
	t.Setenv("CATBOX_PRECISION", "30")
	t.Setenv("CATBOX_STUBBORNNESS", "0.25")
	t.Setenv("CATBOX_DURATION_SECONDS", "120")
	t.Setenv("CATBOX_STORE_KIND", "sqlite")
	t.Setenv("CATBOX_SQLITE_PATH", "override.db")
	t.Setenv("CATBOX_ARTIFACTS_DIR", "artifacts")
	t.Setenv("CATBOX_LOG_LEVEL", "trace")

	config := Default()
	applyEnvOverrides(config)

	if config.Engine.Seed != 7 {
		t.Errorf("expected Seed 7, got %d", config.Engine.Seed)
	}
	if config.Engine.Precision != 30 {
		t.Errorf("expected Precision 30, got %d", config.Engine.Precision)
	}
	if config.Engine.Stubbornness != 0.25 {
		t.Errorf("expected Stubbornness 0.25, got %f", config.Engine.Stubbornness)
	}
	if config.Engine.DurationSeconds != 120 {
		t.Errorf("expected DurationSeconds 120, got %d", config.Engine.DurationSeconds)
	}
	if config.Storage.Kind != "sqlite" {
		t.Errorf("expected Storage.Kind 'sqlite', got '%s'", config.Storage.Kind)
	}
	if config.Storage.SQLitePath != "override.db" {
		t.Errorf("expected SQLitePath 'override.db', got '%s'", config.Storage.SQLitePath)
	}
	if config.Artifacts.Dir != "artifacts" {
		t.Errorf("expected Artifacts.Dir 'artifacts', got '%s'", config.Artifacts.Dir)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverridesIgnoreUnparseable(t *testing.T) {
	t.Setenv("CATBOX_SEED", "not-a-number")
	t.Setenv("CATBOX_STUBBORNNESS", "high")

	config := Default()
	applyEnvOverrides(config)

	if config.Engine.Seed != 42 {
		t.Errorf("expected Seed to keep default 42, got %d", config.Engine.Seed)
	}
	if config.Engine.Stubbornness != 0.7 {
		t.Errorf("expected Stubbornness to keep default 0.7, got %f", config.Engine.Stubbornness)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidStubbornness(t *testing.T) {
	tests := []struct {
		name         string
		stubbornness float64
	}{
		{"negative", -0.1},
		{"greater than 1", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			config.Engine.Stubbornness = tt.stubbornness
			if err := config.Validate(); err == nil {
				t.Error("expected validation error for invalid stubbornness")
			}
		})
	}
}

func TestValidate_InvalidPrecision(t *testing.T) {
	config := Default()
	config.Engine.Precision = 0
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for zero precision")
	}
}

func TestValidate_InvalidDuration(t *testing.T) {
	config := Default()
	config.Engine.DurationSeconds = 0
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for zero duration")
	}
}

func TestValidate_InvalidStoreKind(t *testing.T) {
	config := Default()
	config.Storage.Kind = "postgres"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for invalid store kind")
	}
}

func TestValidate_ValidStoreKinds(t *testing.T) {
	for _, kind := range []string{"", "memory", "sqlite"} {
		config := Default()
		config.Storage.Kind = kind
		if err := config.Validate(); err != nil {
			t.Errorf("expected store kind '%s' to be valid, got error: %v", kind, err)
		}
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	config := Default()
	config.Logging.Level = "loud"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}
