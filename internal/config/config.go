// Package config loads YAML-driven configuration for the core, grounded on
// the teacher's struct-of-structs + gopkg.in/yaml.v3 + Default*() pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wdl-platform/corewdl/internal/logging"
)

// Config holds all core configuration.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
}

// AnalysisConfig governs parse and version-resolution behavior (spec §4.3
// step 3-4).
type AnalysisConfig struct {
	FallbackVersion            string `yaml:"fallback_version"`
	UnsupportedVersionSeverity string `yaml:"unsupported_version_severity"`
	HTTPTimeoutSeconds         int    `yaml:"http_timeout_seconds"`
}

// DefaultAnalysisConfig mirrors the teacher's DefaultConfig() per-section
// constructor style.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		FallbackVersion:            "",
		UnsupportedVersionSeverity: "warning",
		HTTPTimeoutSeconds:         30,
	}
}

// ExecutionConfig governs run-source validation and output placement
// (spec §4.5).
type ExecutionConfig struct {
	OutputDirectory string   `yaml:"output_directory"`
	AllowedFilePaths []string `yaml:"allowed_file_paths"`
	AllowedURLs      []string `yaml:"allowed_urls"`
}

func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		OutputDirectory:  "./runs",
		AllowedFilePaths: []string{"."},
		AllowedURLs:      nil,
	}
}

// LoggingConfig controls the internal/logging package.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Dir       string `yaml:"dir"`
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{DebugMode: false, Dir: ".wdlcore/logs"}
}

// StoreConfig points at the SQLite database backing sessions/runs/index_log.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{DatabasePath: ".wdlcore/core.db"}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Analysis:  DefaultAnalysisConfig(),
		Execution: DefaultExecutionConfig(),
		Logging:   DefaultLoggingConfig(),
		Store:     DefaultStoreConfig(),
	}
}

// Load reads configuration from a YAML file relative to workspace root
// ".wdlcore/config.yaml"; a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	logging.Get(logging.CategoryBoot).Debug("loading config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryBoot).Info("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides follows the teacher's WDLCORE_<SECTION>_<FIELD> naming
// convention (env_override_test.go).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WDLCORE_ANALYSIS_FALLBACK_VERSION"); v != "" {
		c.Analysis.FallbackVersion = v
	}
	if v := os.Getenv("WDLCORE_ANALYSIS_HTTP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.HTTPTimeoutSeconds = n
		}
	}
	if v := os.Getenv("WDLCORE_EXECUTION_OUTPUT_DIRECTORY"); v != "" {
		c.Execution.OutputDirectory = v
	}
	if v := os.Getenv("WDLCORE_EXECUTION_ALLOWED_FILE_PATHS"); v != "" {
		c.Execution.AllowedFilePaths = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("WDLCORE_LOGGING_DEBUG_MODE"); v != "" {
		c.Logging.DebugMode = v == "true" || v == "1"
	}
	if v := os.Getenv("WDLCORE_LOGGING_DIR"); v != "" {
		c.Logging.Dir = v
	}
	if v := os.Getenv("WDLCORE_STORE_DATABASE_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
}
