// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Store     StoreConfig     `yaml:"store"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Transport TransportConfig `yaml:"transport"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// BackendConfig represents streaming backend configuration.
type BackendConfig struct {
	BaseURL          string `yaml:"base_url" validate:"required,url"`
	SearchTimeoutSec int    `yaml:"search_timeout_sec" default:"10" validate:"gte=1,lte=120"`
	StreamTimeoutSec int    `yaml:"stream_timeout_sec" default:"60" validate:"gte=1,lte=300"`
	DownloadQuality  string `yaml:"download_quality" default:"best" validate:"oneof=best medium worst"`
}

// StoreConfig represents local database configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	Volume                  float64 `yaml:"volume" default:"1.0" validate:"gte=0,lte=1"`
	PrevRestartThresholdSec int     `yaml:"prev_restart_threshold_sec" default:"3" validate:"gte=0,lte=30"`
	RecentWriteIntervalSec  int     `yaml:"recent_write_interval_sec" default:"5" validate:"gte=1,lte=60"`
	PreloadNext             bool    `yaml:"preload_next"`
}

// TransportConfig represents media transport (mpv) configuration.
type TransportConfig struct {
	MpvPath    string `yaml:"mpv_path" default:"mpv"`
	SocketPath string `yaml:"socket_path"`
}

// RecommendConfig represents recommendation configuration.
type RecommendConfig struct {
	Enabled    bool             `yaml:"enabled"`
	TimeoutSec int              `yaml:"timeout_sec" default:"90" validate:"gte=5,lte=600"`
	SeedCount  int              `yaml:"seed_count" default:"3" validate:"gte=1,lte=10"`
	TrackCount int              `yaml:"track_count" default:"4" validate:"gte=1,lte=20"`
	LowWater   int              `yaml:"low_water" default:"2" validate:"gte=1,lte=10"`
	Providers  []ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single recommendation provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings" validate:"required"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BEATS_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BEATS_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.setProviderSetting("llm", "api_key", v)
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.setProviderSetting("lastfm", "api_key", v)
	}
}

func (c *Config) setProviderSetting(providerType, key, value string) {
	for i := range c.Recommend.Providers {
		if c.Recommend.Providers[i].Type == providerType {
			if c.Recommend.Providers[i].Settings == nil {
				c.Recommend.Providers[i].Settings = make(map[string]any)
			}
			c.Recommend.Providers[i].Settings[key] = value
			break
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Recommend.Enabled && len(c.Recommend.Providers) == 0 {
		return errors.New("recommend.enabled requires at least one provider")
	}

	return nil
}

// SearchTimeout returns the backend search timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Backend.SearchTimeoutSec) * time.Second
}

// StreamTimeout returns the backend stream-resolution timeout.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Backend.StreamTimeoutSec) * time.Second
}

// RecommendTimeout returns the per-fill recommendation timeout.
func (c *Config) RecommendTimeout() time.Duration {
	return time.Duration(c.Recommend.TimeoutSec) * time.Second
}

// defaultStorePath places the database under the user data dir.
func defaultStorePath() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, ".local", "share", "beats", "beats.db")
}
