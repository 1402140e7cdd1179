package robot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "looi.yaml"

// Config holds the robot configuration.
type Config struct {
	NameContains   string        `yaml:"name_contains" env:"LOOI_NAME"`
	Address        string        `yaml:"address,omitempty" env:"LOOI_ADDRESS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"LOOI_CONNECT_TIMEOUT"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" env:"LOOI_SCAN_TIMEOUT"`
	Endpoints      Endpoints     `yaml:"endpoints,omitempty"`
	// Subscribe lists the notify attributes subscribed during the handshake
	// to keep the link alive. Not every firmware revision may need both.
	Subscribe []Attribute `yaml:"subscribe,omitempty"`
	Keys      Keymap      `yaml:"keys,omitempty"`
	Timing    Timing      `yaml:"timing,omitempty"`
}

// DefaultConfig returns the configuration for a stock LOOI.
func DefaultConfig() *Config {
	return &Config{
		NameContains:   "LOOI",
		ConnectTimeout: 20 * time.Second,
		ScanTimeout:    30 * time.Second,
		Endpoints:      DefaultEndpoints(),
		Subscribe:      KeepaliveAttributes(),
		Keys:           DefaultKeymap(),
		Timing:         DefaultTiming(),
	}
}

// Validate checks the configuration for values a session cannot run with.
func (c *Config) Validate() error {
	if c.NameContains == "" && c.Address == "" {
		return errors.New("config: name_contains or address is required")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("config: connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if err := c.Endpoints.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, attr := range c.Subscribe {
		if _, ok := c.Endpoints[attr]; !ok {
			return fmt.Errorf("config: subscribe: %w: %s", ErrNotMapped, attr)
		}
	}
	if err := c.Keys.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadConfigFrom loads configuration from path on top of the defaults, then
// applies environment overrides. A missing file is not an error.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.Endpoints = DefaultEndpoints().Merge(cfg.Endpoints)
	cfg.Keys = DefaultKeymap().Merge(cfg.Keys)
	cfg.Timing = DefaultTiming().Merge(cfg.Timing)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if a config file exists at path.
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
