// Package config handles reading and writing .slidesmith/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .slidesmith/config.yaml.
type Config struct {
	Version    int              `yaml:"version"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Validation ValidationConfig `yaml:"validation"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Storage    StorageConfig    `yaml:"storage"`
}

// DefaultsConfig holds the deck settings used when a command does not
// override them.
type DefaultsConfig struct {
	Language        string `yaml:"language"` // "en" | "zh"
	Theme           string `yaml:"theme"`
	TableOfContents bool   `yaml:"table_of_contents"`
}

// ValidationConfig controls the compile and repair loop.
type ValidationConfig struct {
	MaxAttempts         int               `yaml:"max_attempts"`
	CompileTimeout      int               `yaml:"compile_timeout"` // seconds
	Passes              int               `yaml:"passes"`
	MaxParallelCompiles int               `yaml:"max_parallel_compiles"`
	Engines             map[string]string `yaml:"engines,omitempty"` // language -> engine binary
}

// OracleConfig selects and tunes the content oracle backend.
type OracleConfig struct {
	Backend        string `yaml:"backend"` // "http" | "command"
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Timeout        int    `yaml:"timeout"` // seconds
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
	Command        string `yaml:"command"`
}

// StorageConfig locates the artifact database and session directories,
// relative to the project root unless absolute.
type StorageConfig struct {
	Database    string `yaml:"database"`
	SessionsDir string `yaml:"sessions_dir"`
}

// Dir is the working-state directory name inside a project.
const Dir = ".slidesmith"

const configFile = "config.yaml"

// ReadConfig reads .slidesmith/config.yaml from the given project directory.
// dir is the project root (not .slidesmith/ itself).
// Fields missing from the file keep their default values.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, Dir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads the project config, falling back to defaults when the
// project has not been initialised.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// WriteConfig writes cfg to .slidesmith/config.yaml in the given project directory.
// Creates the .slidesmith/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, Dir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Defaults: DefaultsConfig{
			Language:        "en",
			Theme:           "Madrid",
			TableOfContents: true,
		},
		Validation: ValidationConfig{
			MaxAttempts:         3,
			CompileTimeout:      120,
			Passes:              2,
			MaxParallelCompiles: 2,
		},
		Oracle: OracleConfig{
			Backend:        "http",
			Endpoint:       "http://localhost:11434/v1",
			Model:          "qwen2.5:14b",
			APIKeyEnv:      "SLIDESMITH_API_KEY",
			Timeout:        120,
			MaxRetries:     2,
			RetryBackoffMs: 500,
			Command:        "claude",
		},
		Storage: StorageConfig{
			Database:    filepath.Join(Dir, "slidesmith.db"),
			SessionsDir: filepath.Join(Dir, "sessions"),
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Validation.MaxAttempts < 1 {
		return fmt.Errorf("validation.max_attempts must be at least 1, got %d", c.Validation.MaxAttempts)
	}
	if c.Validation.Passes < 1 {
		return fmt.Errorf("validation.passes must be at least 1, got %d", c.Validation.Passes)
	}
	if c.Validation.MaxParallelCompiles < 1 {
		return fmt.Errorf("validation.max_parallel_compiles must be at least 1, got %d", c.Validation.MaxParallelCompiles)
	}
	switch c.Oracle.Backend {
	case "http", "command":
	default:
		return fmt.Errorf("oracle.backend must be \"http\" or \"command\", got %q", c.Oracle.Backend)
	}
	return nil
}

// CompileTimeoutDuration returns the per-invocation compiler timeout.
func (c *Config) CompileTimeoutDuration() time.Duration {
	return time.Duration(c.Validation.CompileTimeout) * time.Second
}

// OracleTimeoutDuration returns the per-call oracle timeout.
func (c *Config) OracleTimeoutDuration() time.Duration {
	return time.Duration(c.Oracle.Timeout) * time.Second
}

// Resolve returns p joined to the project root unless it is already absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
