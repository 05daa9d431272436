package config

// Builder provides a fluent interface for overriding a Config.
type Builder struct {
	config Config
}

// NewBuilder creates a Builder starting from base.
func NewBuilder(base Config) *Builder {
	return &Builder{config: base}
}

// Build returns the final Config after validation.
func (b *Builder) Build() (Config, error) {
	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WithMaxCacheSizeMB sets the cache budget in megabytes.
func (b *Builder) WithMaxCacheSizeMB(mb int) *Builder {
	b.config.MaxCacheSizeMB = mb
	return b
}

// WithCacheAhead sets the number of frames prefetched after a miss.
func (b *Builder) WithCacheAhead(frames int) *Builder {
	b.config.CacheAheadFrames = frames
	return b
}

// WithCacheBehind sets the number of frames prefetched before a miss.
func (b *Builder) WithCacheBehind(frames int) *Builder {
	b.config.CacheBehindFrames = frames
	return b
}

// WithFrameRate sets the assumed frame rate.
func (b *Builder) WithFrameRate(fps float64) *Builder {
	b.config.AssumedFrameRateFPS = fps
	return b
}

// WithDecoder sets the decoder mode (auto, mp4 or ffmpeg).
func (b *Builder) WithDecoder(mode string) *Builder {
	b.config.Decoder = mode
	return b
}

// WithFFmpegPath sets a custom ffmpeg binary.
func (b *Builder) WithFFmpegPath(path string) *Builder {
	b.config.FFmpegPath = path
	return b
}

// WithPreviewWidth sets the preview width. 0 keeps full resolution.
func (b *Builder) WithPreviewWidth(width int) *Builder {
	b.config.PreviewWidth = width
	return b
}

// WithLogLevel sets the log level name.
func (b *Builder) WithLogLevel(level string) *Builder {
	b.config.LogLevel = level
	return b
}

// WithDebug enables debug frame dumps into dir. An empty dir keeps the current one.
func (b *Builder) WithDebug(enabled bool, dir string) *Builder {
	b.config.Debug = enabled
	if dir != "" {
		b.config.DebugDir = dir
	}
	return b
}

// WithMetricsAddr sets the listen address of the metrics endpoint.
func (b *Builder) WithMetricsAddr(addr string) *Builder {
	b.config.MetricsAddr = addr
	return b
}
