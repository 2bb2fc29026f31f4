package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Defaults.Language = "zh"
	cfg.Validation.MaxAttempts = 5
	cfg.Validation.Engines = map[string]string{"zh": "lualatex"}

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.Defaults.Language != "zh" {
		t.Errorf("Defaults.Language: got %q, want %q", loaded.Defaults.Language, "zh")
	}
	if loaded.Validation.MaxAttempts != 5 {
		t.Errorf("MaxAttempts: got %d, want 5", loaded.Validation.MaxAttempts)
	}
	if loaded.Validation.Engines["zh"] != "lualatex" {
		t.Errorf("Engines[zh]: got %q, want lualatex", loaded.Validation.Engines["zh"])
	}
}

func TestDefaultConfigMaxAttempts(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Validation.MaxAttempts != 3 {
		t.Errorf("default MaxAttempts: got %d, want 3", cfg.Validation.MaxAttempts)
	}
	if cfg.CompileTimeoutDuration() != 120*time.Second {
		t.Errorf("default compile timeout: got %v", cfg.CompileTimeoutDuration())
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	partial := `version: 1
validation:
  max_attempts: 4
`
	configPath := filepath.Join(tmpDir, Dir)
	if err := os.MkdirAll(configPath, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte(partial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.Validation.MaxAttempts != 4 {
		t.Errorf("MaxAttempts: got %d, want 4", cfg.Validation.MaxAttempts)
	}
	if cfg.Validation.Passes != 2 {
		t.Errorf("Passes should keep its default: got %d, want 2", cfg.Validation.Passes)
	}
	if cfg.Defaults.Theme != "Madrid" {
		t.Errorf("Theme should keep its default: got %q", cfg.Defaults.Theme)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Validation.MaxAttempts = 0 }},
		{"zero passes", func(c *Config) { c.Validation.Passes = 0 }},
		{"zero parallel", func(c *Config) { c.Validation.MaxParallelCompiles = 0 }},
		{"unknown backend", func(c *Config) { c.Oracle.Backend = "carrier-pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadOrDefaultWithoutConfig(t *testing.T) {
	cfg, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Oracle.Backend != "http" {
		t.Errorf("Backend: got %q, want http", cfg.Oracle.Backend)
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("/proj", "/abs/db"); got != "/abs/db" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := Resolve("/proj", ".slidesmith/db"); got != "/proj/.slidesmith/db" {
		t.Errorf("relative path: got %q", got)
	}
}
