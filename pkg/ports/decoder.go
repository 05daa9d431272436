package ports

import (
	"context"
	"image"
)

// FrameDecoder produces a single decoded frame for a source at a timestamp.
type FrameDecoder interface {
	// DecodeFrame decodes the frame of source that is displayed at timestampMs.
	// Implementations may take several seconds and must be safe to call from
	// a background goroutine. ctx cancellation aborts the decode.
	DecodeFrame(ctx context.Context, source string, timestampMs int64) (image.Image, error)
}

// FrameDecoderFunc is a function adapter for FrameDecoder.
type FrameDecoderFunc func(ctx context.Context, source string, timestampMs int64) (image.Image, error)

// DecodeFrame implements FrameDecoder.
func (f FrameDecoderFunc) DecodeFrame(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
	return f(ctx, source, timestampMs)
}

// MediaInfo describes the video track of a media file.
type MediaInfo struct {
	Codec       string
	Width       int
	Height      int
	DurationMs  int64
	FrameRate   float64 // Average frames per second derived from sample timing
	SampleCount int
	Timescale   uint32
	Fragmented  bool
}

// MediaProber inspects a media file without decoding it.
type MediaProber interface {
	// Probe returns information about the first video track of path.
	Probe(path string) (MediaInfo, error)
}
