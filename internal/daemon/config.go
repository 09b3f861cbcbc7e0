// Package daemon holds server configuration and startup wiring.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config is the full daemon configuration, loaded from TOML.
type Config struct {
	Shop    ShopConfig    `toml:"shop"`
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ShopConfig identifies the store the server runs for.
type ShopConfig struct {
	Name string `toml:"name"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig controls the sqlite database location.
type StoreConfig struct {
	Path string `toml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Shop: ShopConfig{
			Name: "My Dukaan",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8990,
		},
		Store: StoreConfig{
			Path: filepath.Join(homeDir(), "dukaan.db"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig reads the config file at path, falling back to defaults for
// any field the file omits. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return cfg, fmt.Errorf("invalid api port %d", cfg.API.Port)
	}
	return cfg, nil
}

// DefaultConfigPath returns the path searched when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), "config.toml")
}

// Addr returns the host:port the API server binds to.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// homeDir returns the dukaan state directory, honoring DUKAAN_HOME.
func homeDir() string {
	if env := os.Getenv("DUKAAN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dukaan")
}
