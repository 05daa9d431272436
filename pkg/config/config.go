// Package config provides configuration loading and management.
//
// Values are layered: defaults, then an optional YAML file, then
// FRAMECACHE_* environment variables, then command-line flags through
// Builder.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/user/framecache/pkg/adapters/smartdecoder"
	"github.com/user/framecache/pkg/framecache"
)

// EnvPrefix is the prefix of environment variables read by ApplyEnv.
const EnvPrefix = "FRAMECACHE_"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the full configuration for the frame cache tools.
type Config struct {
	// Cache
	MaxCacheSizeMB      int           `yaml:"max_cache_size_mb" env:"MAX_CACHE_SIZE_MB"`
	CacheAheadFrames    int           `yaml:"cache_ahead_frames" env:"CACHE_AHEAD_FRAMES"`
	CacheBehindFrames   int           `yaml:"cache_behind_frames" env:"CACHE_BEHIND_FRAMES"`
	AssumedFrameRateFPS float64       `yaml:"assumed_frame_rate_fps" env:"ASSUMED_FRAME_RATE_FPS"`
	RetryAfter          time.Duration `yaml:"retry_after" env:"RETRY_AFTER"`

	// Decoding
	Decoder      string `yaml:"decoder" env:"DECODER"`
	FFmpegPath   string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
	PreviewWidth int    `yaml:"preview_width" env:"PREVIEW_WIDTH"`

	// Logging
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// Debug
	Debug    bool   `yaml:"debug" env:"DEBUG"`
	DebugDir string `yaml:"debug_dir" env:"DEBUG_DIR"`

	// Metrics
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	opts := framecache.DefaultOptions()
	return Config{
		MaxCacheSizeMB:      opts.MaxCacheSizeMB,
		CacheAheadFrames:    opts.CacheAhead,
		CacheBehindFrames:   opts.CacheBehind,
		AssumedFrameRateFPS: opts.FrameRate,
		RetryAfter:          opts.RetryAfter,

		Decoder: smartdecoder.ModeAuto,

		LogLevel: "info",

		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Load reads the optional YAML file at path (skipped when empty) and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FRAMECACHE_* environment variables.
// Unset variables leave the current values untouched.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if err := c.ToOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Decoder {
	case smartdecoder.ModeAuto, smartdecoder.ModeMP4, smartdecoder.ModeFFmpeg:
	default:
		return fmt.Errorf("%w: decoder must be auto, mp4 or ffmpeg, got %q", ErrInvalidConfig, c.Decoder)
	}
	if c.PreviewWidth < 0 {
		return fmt.Errorf("%w: preview_width must not be negative, got %d", ErrInvalidConfig, c.PreviewWidth)
	}
	if c.Debug && c.DebugDir == "" {
		return fmt.Errorf("%w: debug_dir is required when debug is enabled", ErrInvalidConfig)
	}
	return nil
}

// ToOptions converts Config to framecache.Options.
func (c Config) ToOptions() framecache.Options {
	return framecache.Options{
		MaxCacheSizeMB: c.MaxCacheSizeMB,
		CacheAhead:     c.CacheAheadFrames,
		CacheBehind:    c.CacheBehindFrames,
		FrameRate:      c.AssumedFrameRateFPS,
		RetryAfter:     c.RetryAfter,
	}
}

// ToDecoderOptions converts Config to smartdecoder.Options.
func (c Config) ToDecoderOptions() smartdecoder.Options {
	return smartdecoder.Options{
		Mode:         c.Decoder,
		FFmpegPath:   c.FFmpegPath,
		PreviewWidth: c.PreviewWidth,
	}
}
