// Package config holds the settings shared by the deskew commands and the
// rules for layering them: defaults, then the TOML file, then DESKEW_*
// environment variables, then flags set on the command line.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/image-deskew/internal/imaging"
	"github.com/ironsheep/image-deskew/internal/remote"
	"github.com/rs/zerolog"
)

// Config holds the resolved settings.
type Config struct {
	// Remote service
	Endpoint string
	Timeout  time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Local HTTP service
	Listen string

	// Batch and watch
	Workers   int
	OutputDir string
	Suffix    string

	// Overlay
	OverlayColor string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Timeout:      remote.DefaultTimeout,
		LogLevel:     "info",
		LogFormat:    "console",
		Listen:       ":8080",
		Workers:      runtime.NumCPU(),
		Suffix:       "_deskewed",
		OverlayColor: imaging.DefaultOverlayColor,
	}
}

// Validate checks the configuration for consistency.
// The endpoint is only checked when set; commands that need it call
// RequireEndpoint.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be console or json", c.LogFormat)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.Suffix == "" && c.OutputDir == "" {
		return errors.New("suffix must not be empty unless an output directory is set")
	}
	if strings.ContainsAny(c.Suffix, `/\`) {
		return fmt.Errorf("invalid suffix %q: must not contain a path separator", c.Suffix)
	}
	if _, err := imaging.ParseColor(c.OverlayColor); err != nil {
		return err
	}
	return nil
}

// RequireEndpoint validates the remote endpoint. Validate leaves it alone so
// that local commands run regardless of DESKEW_ENDPOINT.
func (c *Config) RequireEndpoint() error {
	return remote.ValidateEndpoint(c.Endpoint)
}

// configSetter applies values while respecting flag precedence.
// A value is skipped when its flag was set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if positive.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
