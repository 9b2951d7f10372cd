package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/msgbox/internal/flagx"
	"github.com/dmitrijs2005/msgbox/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so both "30s" and integer nanoseconds are accepted.
// Keys missing from the file keep their current value.
type JsonConfig struct {
	ListenAddr        string         `json:"listen_addr"`
	MaxConnections    int            `json:"max_connections"`
	ReadTimeout       timex.Duration `json:"read_timeout"`
	WriteTimeout      timex.Duration `json:"write_timeout"`
	Storage           string         `json:"storage"`
	DataDir           string         `json:"data_dir"`
	DatabaseDSN       string         `json:"database_dsn"`
	BcryptCost        int            `json:"bcrypt_cost"`
	MinUsernameLength int            `json:"min_username_length"`
	MaxUsernameLength int            `json:"max_username_length"`
	MinPasswordLength int            `json:"min_password_length"`
	MaxPasswordLength int            `json:"max_password_length"`
	MaxMessageLength  int            `json:"max_message_length"`
	MailboxQuota      int            `json:"mailbox_quota"`
	MaxRequestSize    int            `json:"max_request_size"`
	MaxCommandLength  int            `json:"max_command_length"`
	IDRandomBits      int            `json:"id_random_bits"`
	HealthAddr        string         `json:"health_addr"`
	HealthInterval    timex.Duration `json:"health_interval"`
	MetricsAddr       string         `json:"metrics_addr"`
	LogLevel          string         `json:"log_level"`
	AdminUser         string         `json:"admin_user"`
	AdminPassword     string         `json:"admin_password"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		ListenAddr:        c.ListenAddr,
		MaxConnections:    c.MaxConnections,
		ReadTimeout:       timex.Duration{Duration: c.ReadTimeout},
		WriteTimeout:      timex.Duration{Duration: c.WriteTimeout},
		Storage:           c.Storage,
		DataDir:           c.DataDir,
		DatabaseDSN:       c.DatabaseDSN,
		BcryptCost:        c.BcryptCost,
		MinUsernameLength: c.MinUsernameLength,
		MaxUsernameLength: c.MaxUsernameLength,
		MinPasswordLength: c.MinPasswordLength,
		MaxPasswordLength: c.MaxPasswordLength,
		MaxMessageLength:  c.MaxMessageLength,
		MailboxQuota:      c.MailboxQuota,
		MaxRequestSize:    c.MaxRequestSize,
		MaxCommandLength:  c.MaxCommandLength,
		IDRandomBits:      c.IDRandomBits,
		HealthAddr:        c.HealthAddr,
		HealthInterval:    timex.Duration{Duration: c.HealthInterval},
		MetricsAddr:       c.MetricsAddr,
		LogLevel:          c.LogLevel,
		AdminUser:         c.AdminUser,
		AdminPassword:     c.AdminPassword,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.ListenAddr = j.ListenAddr
	c.MaxConnections = j.MaxConnections
	c.ReadTimeout = j.ReadTimeout.Duration
	c.WriteTimeout = j.WriteTimeout.Duration
	c.Storage = j.Storage
	c.DataDir = j.DataDir
	c.DatabaseDSN = j.DatabaseDSN
	c.BcryptCost = j.BcryptCost
	c.MinUsernameLength = j.MinUsernameLength
	c.MaxUsernameLength = j.MaxUsernameLength
	c.MinPasswordLength = j.MinPasswordLength
	c.MaxPasswordLength = j.MaxPasswordLength
	c.MaxMessageLength = j.MaxMessageLength
	c.MailboxQuota = j.MailboxQuota
	c.MaxRequestSize = j.MaxRequestSize
	c.MaxCommandLength = j.MaxCommandLength
	c.IDRandomBits = j.IDRandomBits
	c.HealthAddr = j.HealthAddr
	c.HealthInterval = j.HealthInterval.Duration
	c.MetricsAddr = j.MetricsAddr
	c.LogLevel = j.LogLevel
	c.AdminUser = j.AdminUser
	c.AdminPassword = j.AdminPassword
}

// parseJson overlays the file named by -c/-config onto config. Without the
// flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	c.apply(config)
	return nil
}
