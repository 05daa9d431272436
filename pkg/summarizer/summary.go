// Package summarizer provides report generation for cache runs.
package summarizer

import (
	"time"

	"github.com/user/framecache/pkg/framecache"
)

// Summary contains all data collected during a scrub session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	Elapsed     time.Duration

	// Video information
	Source SourceInfo

	// Cache settings
	Settings Settings

	// Per-pass lookups
	Passes []PassResult

	// Final cache counters
	Cache framecache.Stats
}

// SourceInfo describes the scrubbed video.
type SourceInfo struct {
	Path       string
	Codec      string
	Decoder    string
	Width      int
	Height     int
	DurationMs int64
	FrameRate  float64
	Frames     int
}

// Settings contains the cache configuration of the run.
type Settings struct {
	MaxCacheSizeMB int
	CacheAhead     int
	CacheBehind    int
	FrameRate      float64
	Decoder        string
	PreviewWidth   int // 0 = full resolution
	StartMs        int64
	EndMs          int64
}

// PassResult counts the lookups of one playback pass.
type PassResult struct {
	Pass   int
	Hits   uint64
	Misses uint64
}

// HitRatio returns the share of lookups in the pass that hit.
func (p PassResult) HitRatio() float64 {
	total := p.Hits + p.Misses
	if total == 0 {
		return 0
	}
	return float64(p.Hits) / float64(total)
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets video information.
func (b *Builder) WithSource(source SourceInfo) *Builder {
	b.summary.Source = source
	return b
}

// WithSettings sets cache settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithPasses sets the per-pass results.
func (b *Builder) WithPasses(passes []PassResult) *Builder {
	b.summary.Passes = passes
	return b
}

// WithCache sets the final cache counters.
func (b *Builder) WithCache(stats framecache.Stats) *Builder {
	b.summary.Cache = stats
	return b
}

// WithElapsed sets the wall time of the run.
func (b *Builder) WithElapsed(d time.Duration) *Builder {
	b.summary.Elapsed = d
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
