// Package main provides the CLI entry point for framecache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// Flag categories
const (
	categoryConfig  = "Configuration"
	categoryCache   = "Cache"
	categoryDecoder = "Decoder"
	categoryDebug   = "Debug"
	categoryLogging = "Logging"
)

func main() {
	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, l10n.T("Interrupted, shutting down..."))
		cancel()
	}()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Usage strings are translated here, after
// the lexicons have been registered.
func newApp() *cli.App {
	return &cli.App{
		Name:    "framecache",
		Usage:   l10n.T("Inspect and scrub videos through a decoded-frame cache"),
		Version: version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			infoCommand(),
			extractCommand(),
			stripCommand(),
			scrubCommand(),
			versionCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		// Configuration
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    l10n.T("YAML configuration file"),
			Category: l10n.T(categoryConfig),
		},

		// Cache
		&cli.IntFlag{
			Name:     "max-cache-mb",
			Usage:    l10n.T("Cache budget in megabytes (default: 512)"),
			Category: l10n.T(categoryCache),
		},
		&cli.IntFlag{
			Name:     "ahead",
			Usage:    l10n.T("Frames to prefetch after a missed frame (default: 30)"),
			Category: l10n.T(categoryCache),
		},
		&cli.IntFlag{
			Name:     "behind",
			Usage:    l10n.T("Frames to prefetch before a missed frame (default: 30)"),
			Category: l10n.T(categoryCache),
		},
		&cli.Float64Flag{
			Name:     "fps",
			Usage:    l10n.T("Assumed frame rate used to space frames (default: 30)"),
			Category: l10n.T(categoryCache),
		},

		// Decoder
		&cli.StringFlag{
			Name:     "decoder",
			Usage:    l10n.T("Decoder backend (auto, mp4, ffmpeg)"),
			Category: l10n.T(categoryDecoder),
		},
		&cli.StringFlag{
			Name:     "ffmpeg",
			Usage:    l10n.T("Path to ffmpeg executable"),
			Category: l10n.T(categoryDecoder),
		},
		&cli.IntFlag{
			Name:     "preview-width",
			Usage:    l10n.T("Downscale decoded frames to this width (0 = full resolution)"),
			Category: l10n.T(categoryDecoder),
		},

		// Debug
		&cli.BoolFlag{
			Name:     "debug",
			Aliases:  []string{"d"},
			Usage:    l10n.T("Dump decoded frames and statistics"),
			Category: l10n.T(categoryDebug),
		},
		&cli.StringFlag{
			Name:     "debug-dir",
			Usage:    l10n.T("Directory for debug output"),
			Category: l10n.T(categoryDebug),
		},

		// Logging
		&cli.StringFlag{
			Name:     "log-level",
			Aliases:  []string{"l"},
			Usage:    l10n.T("Log level (debug, info, warn, error)"),
			Category: l10n.T(categoryLogging),
		},
		&cli.BoolFlag{
			Name:     "quiet",
			Aliases:  []string{"Q"},
			Usage:    l10n.T("Suppress all log output"),
			Category: l10n.T(categoryLogging),
		},
	}
}
