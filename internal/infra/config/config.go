// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Playback PlaybackConfig `yaml:"playback"`
	Sink     SinkConfig     `yaml:"sink"`
}

// BackendConfig represents backend API configuration.
type BackendConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Token   string `yaml:"token"`
}

// PlaybackConfig represents playback engine tunables.
type PlaybackConfig struct {
	StreamTickSec       int `yaml:"stream_tick_sec" default:"10" validate:"gt=0"`
	HistoryCooldownSec  int `yaml:"history_cooldown_sec" default:"300" validate:"gt=0"`
	MetadataTimeoutMs   int `yaml:"metadata_timeout_ms" default:"1500" validate:"gt=0,lte=30000"`
	PrefsDebounceMs     int `yaml:"prefs_debounce_ms" default:"250" validate:"gt=0,lte=5000"`
	RestartThresholdSec int `yaml:"restart_threshold_sec" default:"3" validate:"gte=0"`

	// MissingStatusHidden makes items without a moderation status
	// unavailable. The default (false) treats a missing status as playable,
	// which matches the catalog's podcast episodes that carry no status.
	MissingStatusHidden bool `yaml:"missing_status_hidden"`
}

// SinkConfig represents the audio output configuration.
type SinkConfig struct {
	Type     string         `yaml:"type" default:"beep" validate:"required,oneof=beep null"`
	Settings map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_TOKEN"); v != "" {
		c.Backend.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// MetadataTimeout returns the metadata wait bound as a duration.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Playback.MetadataTimeoutMs) * time.Millisecond
}

// PrefsDebounce returns the preference write debounce as a duration.
func (c *Config) PrefsDebounce() time.Duration {
	return time.Duration(c.Playback.PrefsDebounceMs) * time.Millisecond
}

// StreamTickThreshold returns the stream tick threshold as a duration.
func (c *Config) StreamTickThreshold() time.Duration {
	return time.Duration(c.Playback.StreamTickSec) * time.Second
}

// HistoryCooldown returns the history suppression window as a duration.
func (c *Config) HistoryCooldown() time.Duration {
	return time.Duration(c.Playback.HistoryCooldownSec) * time.Second
}
