package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but keeps durations as strings for TOML.
type FileConfig struct {
	Endpoint     string `toml:"endpoint"`
	Timeout      string `toml:"timeout"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
	Listen       string `toml:"listen"`
	Workers      int    `toml:"workers"`
	OutputDir    string `toml:"output_dir"`
	Suffix       string `toml:"suffix"`
	OverlayColor string `toml:"overlay_color"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.deskew/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".deskew", "config.toml")
	}
	return ""
}

// ApplyFileConfig copies the non-empty values of fc into cfg, skipping any
// whose flag is marked in changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("out-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("suffix", fc.Suffix, &cfg.Suffix)
	s.setString("color", fc.OverlayColor, &cfg.OverlayColor)
	s.setInt("workers", fc.Workers, &cfg.Workers)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	return nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
