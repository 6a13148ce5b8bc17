// Package config loads the simulator configuration from a YAML file
// with defaults suitable for running out of the box.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the mail simulator.
type Config struct {
	// ListenAddr is the HTTP facade bind address.
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is the SQLite database holding the search index and saved
	// queries. Empty disables both; the engine then evaluates keyword
	// predicates by direct scan.
	DBPath string `yaml:"db_path"`

	// SnapshotPath is where the whole-store JSON snapshot is written on
	// shutdown and loaded on startup when present. Empty disables
	// snapshots.
	SnapshotPath string `yaml:"snapshot_path"`

	// MaxQueryTokens bounds query evaluation work; 0 uses the engine
	// default.
	MaxQueryTokens int `yaml:"max_query_tokens"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	dir := defaultDataDir()
	return &Config{
		ListenAddr:   ":8080",
		DBPath:       filepath.Join(dir, "index.db"),
		SnapshotPath: filepath.Join(dir, "snapshot.json"),
		LogLevel:     "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "gmailsim")
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads the config file at path, falling back to defaults for
// a missing file or any unset field.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// Save writes the configuration back to path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
