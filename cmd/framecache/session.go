package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/user/framecache/pkg/adapters/filesink"
	"github.com/user/framecache/pkg/adapters/ggrenderer"
	"github.com/user/framecache/pkg/adapters/logger"
	"github.com/user/framecache/pkg/adapters/nullsink"
	"github.com/user/framecache/pkg/adapters/osfilesystem"
	"github.com/user/framecache/pkg/adapters/promstats"
	"github.com/user/framecache/pkg/adapters/smartdecoder"
	"github.com/user/framecache/pkg/config"
	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/ports"
)

const metricsNamespace = "framecache"

// session holds the adapters and the cache shared by a single command run.
type session struct {
	cfg      config.Config
	log      ports.Logger
	fs       ports.FileSystem
	renderer ports.Renderer
	decoder  *smartdecoder.Decoder
	cache    *framecache.Cache
	sink     ports.FrameSink
	registry *prometheus.Registry

	stopDump func()
}

// newSession loads the configuration and wires the cache for a command.
func newSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	// Create logger
	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	dec, err := smartdecoder.New(cfg.ToDecoderOptions(), fs, renderer, log)
	if err != nil {
		return nil, err
	}
	metrics := promstats.NewDecoderMetrics(metricsNamespace)

	cache, err := framecache.New(metrics.Instrument(dec), log, cfg.ToOptions())
	if err != nil {
		return nil, err
	}

	registry, err := promstats.NewRegistry(promstats.NewCollector(cache, metricsNamespace), metrics)
	if err != nil {
		cache.Close()
		return nil, err
	}

	// Create debug sink
	var sink ports.FrameSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			cache.Close()
			return nil, fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	s := &session{
		cfg:      cfg,
		log:      log,
		fs:       fs,
		renderer: renderer,
		decoder:  dec,
		cache:    cache,
		sink:     sink,
		registry: registry,
		stopDump: func() {},
	}
	if sink.Enabled() {
		s.stopDump = cache.OnFrameAvailable(s.dumpFrame)
	}
	return s, nil
}

// loadConfig layers command-line flags over the file and environment.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	builder := config.NewBuilder(cfg)
	if c.IsSet("max-cache-mb") {
		builder.WithMaxCacheSizeMB(c.Int("max-cache-mb"))
	}
	if c.IsSet("ahead") {
		builder.WithCacheAhead(c.Int("ahead"))
	}
	if c.IsSet("behind") {
		builder.WithCacheBehind(c.Int("behind"))
	}
	if c.IsSet("fps") {
		builder.WithFrameRate(c.Float64("fps"))
	}
	if c.IsSet("decoder") {
		builder.WithDecoder(c.String("decoder"))
	}
	if c.IsSet("ffmpeg") {
		builder.WithFFmpegPath(c.String("ffmpeg"))
	}
	if c.IsSet("preview-width") {
		builder.WithPreviewWidth(c.Int("preview-width"))
	}
	if c.IsSet("log-level") {
		builder.WithLogLevel(c.String("log-level"))
	}
	if c.IsSet("debug") {
		builder.WithDebug(c.Bool("debug"), c.String("debug-dir"))
	} else if c.IsSet("debug-dir") {
		builder.WithDebug(cfg.Debug, c.String("debug-dir"))
	}
	if c.IsSet("metrics-addr") {
		builder.WithMetricsAddr(c.String("metrics-addr"))
	}

	return builder.Build()
}

// dumpFrame writes a newly cached frame to the debug sink.
func (s *session) dumpFrame(ev framecache.FrameEvent) {
	f, ok := s.cache.Peek(ev.Source, ev.TimestampMs)
	if !ok {
		return
	}
	if err := s.sink.SaveFrame(ev.Source, ev.TimestampMs, f); err != nil {
		s.log.Warn("Failed to save debug frame: %s", err.Error())
	}
}

// frame returns the frame at timestampMs, waiting for the background loader
// when it is not cached yet.
func (s *session) frame(ctx context.Context, source string, timestampMs int64) (*framecache.Frame, error) {
	return awaitFrame(ctx, s.cache, source, timestampMs)
}

// awaitFrame looks the frame up through GetFrame, so a miss schedules its
// prefetch window, and blocks until it is loaded or fails.
func awaitFrame(ctx context.Context, cache *framecache.Cache, source string, timestampMs int64) (*framecache.Frame, error) {
	key := framecache.NewKey(source, timestampMs)

	ready := make(chan struct{}, 1)
	failed := make(chan error, 1)
	stopFrames := cache.OnFrameAvailable(func(ev framecache.FrameEvent) {
		if ev.Key == key {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer stopFrames()
	stopErrors := cache.OnCacheError(func(ev framecache.ErrorEvent) {
		if ev.Key == key {
			select {
			case failed <- ev.Err:
			default:
			}
		}
	})
	defer stopErrors()

	for {
		if f, ok := cache.GetFrame(source, timestampMs); ok {
			return f, nil
		}
		// Recently failed frames are not rescheduled, so no event would come.
		if err := cache.LastError(source, timestampMs); err != nil {
			return nil, err
		}
		if st := cache.LoaderState(); st == framecache.StateStopping || st == framecache.StateStopped {
			return nil, framecache.ErrLoaderStopped
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-failed:
			return nil, err
		case <-ready:
			// Look again; the frame may have been evicted already.
		}
	}
}

// logStats reports the cache counters and dumps them to the debug sink.
func (s *session) logStats() {
	stats := s.cache.Stats()
	s.log.Info("Cache: %d hits, %d misses, %.1f MB", stats.Hits, stats.Misses, s.cache.SizeMB())

	if !s.sink.Enabled() {
		return
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err == nil {
		err = s.sink.SaveStatsJSON(data)
	}
	if err != nil {
		s.log.Warn("Failed to save statistics: %s", err.Error())
	}
}

func (s *session) close() {
	s.stopDump()
	s.cache.Close()
}

// sourceArg returns the first positional argument.
func sourceArg(c *cli.Context) (string, error) {
	source := c.Args().First()
	if source == "" {
		return "", errors.New(l10n.T("A video file argument is required"))
	}
	return source, nil
}
