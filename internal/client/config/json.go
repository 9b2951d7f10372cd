package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/msgbox/internal/flagx"
	"github.com/dmitrijs2005/msgbox/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerAddr     string         `json:"server_addr"`
	ConnectRetries int            `json:"connect_retries"`
	RetryDelay     timex.Duration `json:"retry_delay"`
	Timeout        timex.Duration `json:"timeout"`
}

// parseJson overlays cfg with the file named by -c/-config. Keys missing
// from the file keep their current value.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	jc := JsonConfig{
		ServerAddr:     cfg.ServerAddr,
		ConnectRetries: cfg.ConnectRetries,
		RetryDelay:     timex.Duration{Duration: cfg.RetryDelay},
		Timeout:        timex.Duration{Duration: cfg.Timeout},
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	cfg.ServerAddr = jc.ServerAddr
	cfg.ConnectRetries = jc.ConnectRetries
	cfg.RetryDelay = jc.RetryDelay.Duration
	cfg.Timeout = jc.Timeout.Duration
	return nil
}
