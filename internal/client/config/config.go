package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the msgbox client.
type Config struct {
	ServerAddr     string
	ConnectRetries int
	RetryDelay     time.Duration
	Timeout        time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:64623"
	c.ConnectRetries = 3
	c.RetryDelay = time.Second
	c.Timeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if cfg.ConnectRetries < 1 {
		return nil, fmt.Errorf("connect retries must be at least 1, got %d", cfg.ConnectRetries)
	}
	return cfg, nil
}
