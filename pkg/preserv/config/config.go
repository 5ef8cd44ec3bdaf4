// Package config loads preserv's application configuration and holds
// the small persisted state store the verification engine updates after
// each run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	// ArchivePath is the default archive root used when no path
	// argument is given on the command line.
	ArchivePath string `mapstructure:"archive_path"`

	// ManifestPath is where the manifest file lives.
	ManifestPath string `mapstructure:"manifest_path"`

	// Workers is the number of concurrent hashing workers.
	Workers int `mapstructure:"workers"`

	// History configures run-history retention.
	History struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"history"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// DefaultWorkers returns the default hashing worker count: NumCPU
// capped at 8, since fixity checking is disk-bound well before it is
// CPU-bound.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultRetentionDays is how long run-history records are kept.
const DefaultRetentionDays = 90

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/preserv/config.yaml
//   - $HOME/.config/preserv/config.yaml
//
// Environment variables are prefixed with PRESERV_ (e.g.
// PRESERV_MANIFEST_PATH).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "preserv"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "preserv"))

	v.SetEnvPrefix("PRESERV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("archive_path", "")
	v.SetDefault("manifest_path", DefaultManifestPath())
	v.SetDefault("workers", DefaultWorkers())
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryDir())
	v.SetDefault("history.retention_days", DefaultRetentionDays)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.components", map[string]string{
		"engine":   "info",
		"manifest": "info",
		"walker":   "warn",
		"watcher":  "info",
	})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.HasPrefix(cfg.ManifestPath, "~") {
		cfg.ManifestPath = filepath.Join(homeDir, cfg.ManifestPath[1:])
	}

	return &cfg, nil
}

// DataDir returns $XDG_DATA_HOME/preserv/ for the manifest and history.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "preserv")
}

// StateDir returns $XDG_STATE_HOME/preserv/ for logs and run state.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "preserv")
}

// DefaultManifestPath returns the default manifest file path.
func DefaultManifestPath() string {
	return filepath.Join(DataDir(), "manifest.csv")
}

// DefaultHistoryDir returns the default run-history directory.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultStatePath returns the default engine state file path.
func DefaultStatePath() string {
	return filepath.Join(StateDir(), "state.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// ConfigDir returns the directory the config file is read from.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "preserv"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "preserv"), nil
}

// defaultConfigYAML is written by WriteDefault as a starting point.
const defaultConfigYAML = `# preserv configuration

# Default archive root used when no path argument is given.
# archive_path: /mnt/archive

# Where the checksum manifest lives.
# manifest_path: ~/.local/share/preserv/manifest.csv

# Concurrent hashing workers (0 = auto).
workers: 0

history:
  enabled: true
  retention_days: 90

logging:
  level: info
`

// WriteDefault creates a default config file if one doesn't exist.
func WriteDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
