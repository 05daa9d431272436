package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/adapters/promstats"
	"github.com/user/framecache/pkg/framecache"
	"github.com/user/framecache/pkg/ports"
	"github.com/user/framecache/pkg/summarizer"
)

// Strip layout
const (
	stripGap         = 4
	stripLabelHeight = 16
	stripLabelSize   = 11
)

var stripBackground = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     l10n.T("Show codec, size, duration and frame rate of a video"),
		ArgsUsage: "<file>",
		Action:    runInfo,
	}
}

func runInfo(c *cli.Context) error {
	source, err := sourceArg(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	s.log.Info("Probing %s", source)
	info, err := s.decoder.Info(source)
	if err != nil {
		return err
	}

	media := info.Media
	if media.SampleCount == 0 {
		// The ffmpeg backend is selected without probing.
		if probed, err := codecdetect.New().Probe(source); err == nil {
			media = probed
		}
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%-12s %s\n", l10n.T("Codec")+":", info.Codec)
	fmt.Fprintf(w, "%-12s %s\n", l10n.T("Decoder")+":", info.Backend)
	if media.SampleCount > 0 {
		fmt.Fprintf(w, "%-12s %dx%d\n", l10n.T("Size")+":", media.Width, media.Height)
		fmt.Fprintf(w, "%-12s %dms\n", l10n.T("Duration")+":", media.DurationMs)
		fmt.Fprintf(w, "%-12s %.2f fps\n", l10n.T("Frame rate")+":", media.FrameRate)
		fmt.Fprintf(w, "%-12s %d\n", l10n.T("Frames")+":", media.SampleCount)
		fmt.Fprintf(w, "%-12s %t\n", l10n.T("Fragmented")+":", media.Fragmented)
	}
	return nil
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     l10n.T("Fetch one frame through the cache and save it as an image"),
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "at", Aliases: []string{"t"}, Required: true, Usage: l10n.T("Timestamp in milliseconds")},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: l10n.T("Output image path (.png or .jpg)")},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Value: 90, Usage: l10n.T("JPEG quality (1-100)")},
		},
		Action: runExtract,
	}
}

func runExtract(c *cli.Context) error {
	source, err := sourceArg(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ts := c.Int64("at")
	s.log.Info("Fetching frame at %dms from %s", ts, source)

	f, err := s.frame(c.Context, source, ts)
	if err != nil {
		return err
	}

	output := c.String("output")
	if err := s.writeImage(output, f, c.Int("quality")); err != nil {
		return err
	}
	s.log.Info("Frame saved to %s", output)

	s.logStats()
	return nil
}

func stripCommand() *cli.Command {
	return &cli.Command{
		Name:      "strip",
		Usage:     l10n.T("Compose evenly spaced frames into a filmstrip image"),
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "start", Usage: l10n.T("First timestamp in milliseconds")},
			&cli.Int64Flag{Name: "end", Usage: l10n.T("Last timestamp in milliseconds (default: end of video)")},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 8, Usage: l10n.T("Number of frames")},
			&cli.IntFlag{Name: "height", Value: 90, Usage: l10n.T("Thumbnail height in pixels")},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: l10n.T("Output image path (.png or .jpg)")},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Value: 90, Usage: l10n.T("JPEG quality (1-100)")},
		},
		Action: runStrip,
	}
}

func runStrip(c *cli.Context) error {
	source, err := sourceArg(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	start := c.Int64("start")
	end, err := s.endOf(source, c.Int64("end"))
	if err != nil {
		return err
	}
	timestamps := stripTimestamps(start, end, c.Int("count"))
	if len(timestamps) == 0 {
		return fmt.Errorf("%s: %d-%dms", l10n.T("Empty time range"), start, end)
	}

	// Queue every thumbnail up front so the loader works through them in order.
	s.log.Info("Prefetching %d frames from %s", len(timestamps), source)
	for _, ts := range timestamps {
		s.cache.GetFrame(source, ts)
	}

	frames := make([]image.Image, 0, len(timestamps))
	labels := make([]string, 0, len(timestamps))
	for _, ts := range timestamps {
		f, err := s.frame(c.Context, source, ts)
		if err != nil {
			return err
		}
		frames = append(frames, f)
		labels = append(labels, fmt.Sprintf("%dms", ts))
	}

	strip := composeStrip(s.renderer, frames, labels, c.Int("height"))

	output := c.String("output")
	if err := s.writeImage(output, strip, c.Int("quality")); err != nil {
		return err
	}
	s.log.Info("Filmstrip saved to %s", output)

	s.logStats()
	return nil
}

func scrubCommand() *cli.Command {
	return &cli.Command{
		Name:      "scrub",
		Usage:     l10n.T("Simulate playback and report cache hits and misses"),
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "start", Usage: l10n.T("First timestamp in milliseconds")},
			&cli.Int64Flag{Name: "end", Usage: l10n.T("Last timestamp in milliseconds (default: end of video)")},
			&cli.IntFlag{Name: "passes", Value: 2, Usage: l10n.T("Number of playback passes")},
			&cli.BoolFlag{Name: "prefetch", Usage: l10n.T("Prefetch the whole range before playing")},
			&cli.StringFlag{Name: "metrics-addr", Usage: l10n.T("Serve Prometheus metrics on this address (e.g., :9090)")},
			&cli.BoolFlag{Name: "serve", Usage: l10n.T("Keep serving metrics after playback until interrupted")},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Write a Markdown summary of the run to this file")},
		},
		Action: runScrub,
	}
}

func runScrub(c *cli.Context) error {
	source, err := sourceArg(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	start := c.Int64("start")
	end, err := s.endOf(source, c.Int64("end"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if addr := s.cfg.MetricsAddr; addr != "" {
		server := &http.Server{Addr: addr, Handler: promstats.Handler(s.registry)}
		s.log.Info("Serving metrics on %s", addr)

		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		s.log.Info("Scrubbing %s from %dms to %dms", source, start, end)
		began := time.Now()
		if c.Bool("prefetch") {
			s.log.Info("Prefetching %d frames from %s", s.cache.PrefetchRange(source, start, end), source)
		}
		passes, err := scrub(ctx, s.cache, s.log, source, start, end, c.Int("passes"))
		if err != nil {
			return err
		}
		s.logStats()

		if path := c.String("summary"); path != "" {
			summary := s.summarize(source, start, end, passes, time.Since(began))
			if err := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), s.fs).Write(path, summary); err != nil {
				s.log.Error("Failed to write summary: %s", err.Error())
				return err
			}
			s.log.Info("Summary saved to %s", path)
		}

		if !c.Bool("serve") || s.cfg.MetricsAddr == "" {
			cancel()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// scrub polls the cache once per frame interval, like a player that shows
// whatever is cached and moves on.
func scrub(ctx context.Context, cache *framecache.Cache, log ports.Logger, source string, start, end int64, passes int) ([]summarizer.PassResult, error) {
	policy := framecache.PrefetchPolicy{FrameRate: cache.FrameRate()}
	timestamps := policy.Range(start, end)

	ticker := time.NewTicker(time.Duration(policy.Interval()) * time.Millisecond)
	defer ticker.Stop()

	results := make([]summarizer.PassResult, 0, passes)
	for pass := 1; pass <= passes; pass++ {
		before := cache.Stats()
		for _, ts := range timestamps {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-ticker.C:
			}
			cache.GetFrame(source, ts)
		}
		after := cache.Stats()

		result := summarizer.PassResult{
			Pass:   pass,
			Hits:   after.Hits - before.Hits,
			Misses: after.Misses - before.Misses,
		}
		log.Info("Pass %d: %d hits, %d misses", result.Pass, result.Hits, result.Misses)
		results = append(results, result)
	}
	return results, nil
}

// summarize collects the report of a scrub run.
func (s *session) summarize(source string, start, end int64, passes []summarizer.PassResult, elapsed time.Duration) *summarizer.Summary {
	info := summarizer.SourceInfo{Path: source}
	if selected, err := s.decoder.Info(source); err == nil {
		info.Codec = string(selected.Codec)
		info.Decoder = string(selected.Backend)
		info.Width = selected.Media.Width
		info.Height = selected.Media.Height
		info.DurationMs = selected.Media.DurationMs
		info.FrameRate = selected.Media.FrameRate
		info.Frames = selected.Media.SampleCount
	}

	return summarizer.NewBuilder().
		WithSource(info).
		WithSettings(summarizer.Settings{
			MaxCacheSizeMB: s.cache.MaxCacheSizeMB(),
			CacheAhead:     s.cache.CacheAhead(),
			CacheBehind:    s.cache.CacheBehind(),
			FrameRate:      s.cache.FrameRate(),
			Decoder:        s.cfg.Decoder,
			PreviewWidth:   s.cfg.PreviewWidth,
			StartMs:        start,
			EndMs:          end,
		}).
		WithPasses(passes).
		WithCache(s.cache.Stats()).
		WithElapsed(elapsed).
		Build()
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, l10n.F("framecache version %s", version))
			return nil
		},
	}
}

// endOf returns end, or the last millisecond of source when end is not positive.
func (s *session) endOf(source string, end int64) (int64, error) {
	if end > 0 {
		return end, nil
	}
	info, err := s.decoder.Info(source)
	if err != nil {
		return 0, err
	}
	media := info.Media
	if media.DurationMs == 0 {
		if probed, err := codecdetect.New().Probe(source); err == nil {
			media = probed
		}
	}
	if media.DurationMs <= 0 {
		return 0, errors.New(l10n.T("Duration is unknown, set --end"))
	}
	return media.DurationMs - 1, nil
}

// writeImage encodes img by the extension of path and writes it.
func (s *session) writeImage(path string, img image.Image, quality int) error {
	data, err := s.renderer.EncodeImage(img, formatFor(path), quality)
	if err != nil {
		return err
	}
	if err := s.fs.WriteFile(path, data); err != nil {
		s.log.Error("Failed to write output: %s", err.Error())
		return err
	}
	return nil
}

// formatFor picks JPEG for .jpg/.jpeg paths and PNG otherwise.
func formatFor(path string) ports.ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return ports.FormatJPEG
	default:
		return ports.FormatPNG
	}
}

// stripTimestamps returns count timestamps spread evenly from start to end,
// both included.
func stripTimestamps(start, end int64, count int) []int64 {
	if count <= 0 || end < start {
		return nil
	}
	if count == 1 {
		return []int64{start}
	}
	out := make([]int64, count)
	span := end - start
	for i := range out {
		out[i] = start + span*int64(i)/int64(count-1)
	}
	return out
}

// composeStrip lays frames out left to right at the given height, with a
// label under each one. Thumbnail width follows the first frame's aspect.
func composeStrip(renderer ports.Renderer, frames []image.Image, labels []string, height int) image.Image {
	b := frames[0].Bounds()
	width := height
	if b.Dy() > 0 {
		width = height * b.Dx() / b.Dy()
	}

	n := len(frames)
	canvas := renderer.CreateCanvas(
		n*width+(n+1)*stripGap,
		height+2*stripGap+stripLabelHeight,
		stripBackground,
	)

	style := ports.TextStyle{FontSize: stripLabelSize, Color: color.White, Align: ports.AlignCenter}
	for i, f := range frames {
		x := stripGap + i*(width+stripGap)
		canvas.DrawImageScaled(f, x, stripGap, width, height)
		if i < len(labels) {
			canvas.DrawText(labels[i], x+width/2, stripGap+height+stripLabelHeight-4, style)
		}
	}
	return canvas.ToImage()
}
