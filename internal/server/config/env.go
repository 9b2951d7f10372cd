package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "MSGBOX_"

// processEnv returns the process environment as a map.
func processEnv() map[string]string {
	vars := os.Environ()
	m := make(map[string]string, len(vars))
	for _, kv := range vars {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

// envFile is the dotenv file loaded before the environment is read.
func envFile(vars map[string]string) string {
	if v, ok := vars[envPrefix+"ENV_FILE"]; ok {
		return v
	}
	return ".env"
}

// loadDotEnv exports the variables of path into the process environment.
// Variables already set win over the file. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays the MSGBOX_* variables of vars onto config. Fields
// without a matching non-empty variable keep their value.
func parseEnv(config *Config, vars map[string]string) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix, Environment: vars}); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return nil
}
