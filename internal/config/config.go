// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultBusType       = "session"
	DefaultBusName       = "io.github.jmylchreest.LaneChime"
	DefaultOutputFormat  = "text"
	DefaultPlayVolume    = 80
	DefaultClientTimeout = "2s"
)

// Config represents the lanechime client configuration.
type Config struct {
	Bus    BusConfig    `toml:"bus"`
	Output OutputConfig `toml:"output"`
	Play   PlayConfig   `toml:"play"`
}

// BusConfig selects the D-Bus connection and well-known name.
type BusConfig struct {
	Type string `toml:"type"` // "session" or "system"
	Name string `toml:"name"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format string `toml:"format"` // text, json, yaml
}

// PlayConfig holds defaults for the play command.
type PlayConfig struct {
	Volume  int    `toml:"volume"`
	Timeout string `toml:"timeout"` // per-call bus timeout
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			Type: DefaultBusType,
			Name: DefaultBusName,
		},
		Output: OutputConfig{
			Format: DefaultOutputFormat,
		},
		Play: PlayConfig{
			Volume:  DefaultPlayVolume,
			Timeout: DefaultClientTimeout,
		},
	}
}

// ConfigDir returns the lanechime configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "lanechime")
}

// ConfigPath returns the path to the client config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "lanechime.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Bus.Validate(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q, must be one of: text, json, yaml", c.Output.Format)
	}
	if c.Play.Volume < 0 || c.Play.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Play.Volume)
	}
	if d, err := time.ParseDuration(c.Play.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q, must be a positive duration", c.Play.Timeout)
	}
	return nil
}

// CallTimeout returns the per-call bus timeout, or 2s when unset.
func (p PlayConfig) CallTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Validate checks the bus type and name.
func (b BusConfig) Validate() error {
	if b.Type != "session" && b.Type != "system" {
		return fmt.Errorf("invalid bus type %q, must be session or system", b.Type)
	}
	if b.Name == "" {
		return errors.New("bus name cannot be empty")
	}
	return nil
}
