// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Playback PlaybackConfig `yaml:"playback"`
	Cache    CacheConfig    `yaml:"cache"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
}

// APIConfig represents the remote service endpoints and credentials.
type APIConfig struct {
	BaseURL      string `yaml:"base_url" default:"https://api.tidal.com/v1" validate:"required,url"`
	BaseURLV2    string `yaml:"base_url_v2" default:"https://api.tidal.com/v2" validate:"required,url"`
	AuthURL      string `yaml:"auth_url" default:"https://auth.tidal.com/v1/oauth2" validate:"required,url"`
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	CountryCode  string `yaml:"country_code" default:"US" validate:"len=2"`
	Locale       string `yaml:"locale" default:"en_US"`
}

// PlaybackConfig represents stream selection preferences.
type PlaybackConfig struct {
	AudioQuality   string `yaml:"audio_quality" default:"LOSSLESS" validate:"oneof=LOW HIGH LOSSLESS HI_RES"`
	MaxVideoHeight int    `yaml:"max_video_height" default:"1080" validate:"gt=0"`
	// SilenceURL is returned in place of streams this client cannot play.
	// Media hosts handle a silent track far better than a missing one.
	SilenceURL string `yaml:"silence_url" default:"https://cdn.tidecast.dev/static/silence.m4a" validate:"required,url"`
}

// CacheConfig represents local cache placement.
type CacheConfig struct {
	Dir string `yaml:"dir" default:"cache"`
}

// PrefetchConfig represents the bulk album prefetch pool.
type PrefetchConfig struct {
	Workers           int     `yaml:"workers" default:"4" validate:"gte=1,lte=16"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"5" validate:"gt=0"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
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

// Default returns a configuration with defaults applied and no credentials.
// Used by tools that only need endpoint layout.
func Default() (*Config, error) {
	var cfg Config
	cfg.overrideFromEnv()
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("TIDECAST_CLIENT_ID"); v != "" {
		c.API.ClientID = v
	}
	if v := os.Getenv("TIDECAST_CLIENT_SECRET"); v != "" {
		c.API.ClientSecret = v
	}
	if v := os.Getenv("TIDECAST_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
