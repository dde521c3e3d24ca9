// Package config loads runtime settings from the environment and an optional
// .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings that are not passed as command line flags.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `env:"DAFLIP_LOG_LEVEL" default:"INFO"`

	// LogFormat is the log format: text or json.
	LogFormat string `env:"DAFLIP_LOG_FORMAT" default:"text"`

	// PreviewRows is how many rows are shown when a conversion fails.
	PreviewRows int `env:"DAFLIP_PREVIEW_ROWS" default:"5"`
}

// Load reads the .env file, if any, without overriding variables that are
// already set, and then fills the config from the environment.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Load: %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("DAFLIP_LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.LogLevel))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("DAFLIP_LOG_FORMAT (%q) must be one of: text, json", c.LogFormat))
	}

	if c.PreviewRows <= 0 {
		errs = append(errs, "DAFLIP_PREVIEW_ROWS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
