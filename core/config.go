package core

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the environment/configuration surface from spec.md §6: the
// backend id, logger sink selection, asset roots, shader/font paths, and
// an optional automatic-screenshot interval.
type Config struct {
	Backend                   string  `toml:"backend"`
	LoggerSink                string  `toml:"logger_sink"`
	LoggerTarget              string  `toml:"logger_target"`
	AssetsRoot                string  `toml:"assets_root"`
	ShaderDir                 string  `toml:"shader_dir"`
	FontPath                  string  `toml:"font_path"`
	ScreenshotIntervalSeconds float64 `toml:"screenshot_interval_seconds"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Backend:    "vulkan",
		LoggerSink: "stdout",
		AssetsRoot: "assets",
		ShaderDir:  "assets/shaders",
		FontPath:   "assets/fonts/default.ttf",
	}
}

// LoadConfig decodes a TOML configuration file into a Config, applying
// DefaultConfig for any field the file does not set.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoggerConfig translates the Config's logger_sink/logger_target strings
// into a LoggerConfig understood by NewLogger.
func (c *Config) LoggerConfig() LoggerConfig {
	sink := LogSinkStdout
	switch c.LoggerSink {
	case "file":
		sink = LogSinkFile
	case "ring":
		sink = LogSinkRing
	}
	return LoggerConfig{
		Sink:         sink,
		Target:       c.LoggerTarget,
		RingCapacity: 512,
		Enabled:      true,
	}
}
