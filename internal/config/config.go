// Package config provides configuration loading and structs for pagesplit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/pagesplit/internal/detect"
	"gopkg.in/yaml.v3"
)

// Bundle modes describe how produced files are packaged.
const (
	BundleCSV  = "csv"
	BundleZip  = "zip"
	BundleXLSX = "xlsx"
)

// Duplicate policies decide what happens when two segments map to the same output file.
const (
	DuplicatesOverwrite = "overwrite"
	DuplicatesFail      = "fail"
)

// Remote drivers.
const (
	DriverRclone = "rclone"
	DriverAFS    = "afs"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Patterns PatternsConfig `yaml:"patterns"`
	Output   OutputConfig   `yaml:"output"`
	Remote   RemoteConfig   `yaml:"remote"`
	Storage  StorageConfig  `yaml:"storage"`
	Watch    WatchConfig    `yaml:"watch"`
	Server   ServerConfig   `yaml:"server"`
}

// PatternsConfig holds the detection patterns. The name pattern needs exactly one capture group.
type PatternsConfig struct {
	Identifier string `yaml:"identifier"`
	Name       string `yaml:"name"`
}

// OutputConfig holds where and how split documents are written.
type OutputConfig struct {
	Directory  string `yaml:"directory"`
	Bundle     string `yaml:"bundle"`
	Duplicates string `yaml:"duplicates"`
}

// RemoteConfig holds the optional publish destination. An empty Destination disables publishing.
type RemoteConfig struct {
	Driver      string `yaml:"driver"`
	Destination string `yaml:"destination"`
	RemoveLocal bool   `yaml:"remove_local"`
}

// Enabled reports whether outputs should be published.
func (r *RemoteConfig) Enabled() bool {
	return r.Destination != ""
}

// StorageConfig holds the run history database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	Disabled     bool   `yaml:"disabled"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	UploadTempDir string `yaml:"upload_temp_dir"`
}

// Load reads and parses the config file at path, applies defaults, expands paths and validates.
// Returns an error if the file cannot be read or parsed or holds an unknown mode.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with relative paths resolved against baseDir.
func Default(baseDir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths(baseDir)
	return cfg
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Output.Bundle {
	case BundleCSV, BundleZip, BundleXLSX:
	default:
		return fmt.Errorf("invalid output.bundle %q (expected csv, zip or xlsx)", c.Output.Bundle)
	}
	switch c.Output.Duplicates {
	case DuplicatesOverwrite, DuplicatesFail:
	default:
		return fmt.Errorf("invalid output.duplicates %q (expected overwrite or fail)", c.Output.Duplicates)
	}
	switch c.Remote.Driver {
	case DriverRclone, DriverAFS:
	default:
		return fmt.Errorf("invalid remote.driver %q (expected rclone or afs)", c.Remote.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	c.Output.Directory = expandPath(c.Output.Directory, configDir)
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// paths starting with "~/" are relative to the home directory; other relative paths are
// relative to configDir as well.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}

// DetectPatterns returns the configured patterns in the form the detector takes.
func (c *Config) DetectPatterns() detect.Patterns {
	return detect.Patterns{Identifier: c.Patterns.Identifier, Name: c.Patterns.Name}
}
