// Package config loads and persists tidemark settings.
//
// Settings resolve in the usual precedence: defaults, then the config
// file at ~/.tidemark/config.toml, then TIDEMARK_* environment variables.
// `tm login` writes the remote credentials back to the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config holds all tidemark settings.
type Config struct {
	// DatabasePath is the local SQLite file.
	DatabasePath string `mapstructure:"database_path" toml:"database_path"`

	// RemoteURL is the libsql URL of the cloud database.
	RemoteURL string `mapstructure:"remote_url" toml:"remote_url"`

	// RemoteAuthToken authenticates against the remote database.
	RemoteAuthToken string `mapstructure:"remote_auth_token" toml:"remote_auth_token"`

	// BatchSize caps pending records per upload phase.
	BatchSize int `mapstructure:"batch_size" toml:"batch_size"`

	// SyncInterval is the daemon's periodic sync cadence.
	SyncInterval time.Duration `mapstructure:"sync_interval" toml:"sync_interval"`

	// DashboardPort is the WebSocket status server port.
	DashboardPort int `mapstructure:"dashboard_port" toml:"dashboard_port"`

	// LogFile, if set, routes daemon logs to a rotated file.
	LogFile string `mapstructure:"log_file" toml:"log_file"`
}

// Configured reports whether a remote store is set up.
func (c *Config) Configured() bool {
	return c.RemoteURL != ""
}

// Dir returns the tidemark config/data directory (~/.tidemark).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tidemark"), nil
}

// Load reads the config, applying defaults, config file, and environment
// in that order. A missing config file is not an error.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	v.SetDefault("database_path", filepath.Join(dir, "tidemark.db"))
	v.SetDefault("batch_size", 50)
	v.SetDefault("sync_interval", 5*time.Minute)
	v.SetDefault("dashboard_port", 8422)

	v.SetEnvPrefix("TIDEMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about. Keys
	// without a default (the credentials and the log file) must be bound
	// explicitly or env-only configuration is silently ignored.
	for _, key := range []string{
		"database_path", "remote_url", "remote_auth_token",
		"batch_size", "sync_interval", "dashboard_port", "log_file",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.toml")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
