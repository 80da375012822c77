package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrInvalidConfiguration is returned for out-of-range capture settings.
// A rejected configuration leaves the previously adopted one untouched.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config is the process-wide capture configuration. SampleRate and
// ChannelCount override the tap's native format description when they
// differ from it; LogPath adds a log file next to console output.
type Config struct {
	SampleRate   float64 `json:"sample_rate"`
	ChannelCount int     `json:"channel_count"`
	LogPath      string  `json:"log_path,omitempty"`
	OutputDir    string  `json:"output_dir,omitempty"`
}

// Default returns the configuration used until Configure replaces it.
func Default() Config {
	return Config{
		SampleRate:   48000,
		ChannelCount: 2,
	}
}

// Validate rejects non-positive sample rates and channel counts.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %v must be positive", ErrInvalidConfiguration, c.SampleRate)
	}
	if c.ChannelCount <= 0 {
		return fmt.Errorf("%w: channel count %d must be positive", ErrInvalidConfiguration, c.ChannelCount)
	}
	return nil
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(configPath()); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := configPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "mac-audio-capture", "config.json")
}
