package config

import "os"

// ApplyEnvConfig applies DESKEW_* environment variables to cfg, skipping
// any whose flag is marked in changed.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", os.Getenv("DESKEW_ENDPOINT"), &cfg.Endpoint)
	s.setString("log-level", os.Getenv("DESKEW_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("DESKEW_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("listen", os.Getenv("DESKEW_LISTEN"), &cfg.Listen)
	s.setString("out-dir", os.Getenv("DESKEW_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("suffix", os.Getenv("DESKEW_SUFFIX"), &cfg.Suffix)
	s.setString("color", os.Getenv("DESKEW_OVERLAY_COLOR"), &cfg.OverlayColor)

	if err := s.setDuration("timeout", os.Getenv("DESKEW_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setIntFromString("workers", os.Getenv("DESKEW_WORKERS"), &cfg.Workers); err != nil {
		return err
	}
	return nil
}
