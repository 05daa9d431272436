// Package h264decoder decodes single frames of H.264 MP4 files.
//
// The sample table of each file is parsed once with mp4ff. To decode a
// timestamp, the samples from the preceding keyframe up to the requested
// one are converted to an Annex B stream and decoded by an ffmpeg process,
// so the result is accurate to the sample rather than to the keyframe.
package h264decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/user/framecache/pkg/ports"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrDecodeFailed is returned when ffmpeg produced no frame.
	ErrDecodeFailed = errors.New("h264decoder: decode failed")

	// ErrFFmpegNotFound is returned when ffmpeg is not found.
	ErrFFmpegNotFound = errors.New("h264decoder: ffmpeg not found in PATH")

	// ErrNoVideoTrack is returned when the file has no H.264 video track.
	ErrNoVideoTrack = errors.New("h264decoder: no H.264 video track found")

	// ErrTimestampOutOfRange is returned for timestamps outside the track.
	ErrTimestampOutOfRange = errors.New("h264decoder: timestamp outside the track")
)

// Options configures the decoder.
type Options struct {
	FFmpegPath     string // Custom path to the ffmpeg binary (default: search PATH)
	IndexCacheSize int    // Parsed sample tables kept in memory (default: 8)
}

// Decoder implements ports.FrameDecoder for H.264 MP4 files.
// It is safe for concurrent use.
type Decoder struct {
	ffmpegPath string
	fs         ports.FileSystem
	logger     ports.Logger

	indexes *lru.Cache[string, *trackIndex]
	loads   singleflight.Group
}

// New creates a decoder. It fails if ffmpeg cannot be found.
func New(opts Options, fs ports.FileSystem, logger ports.Logger) (*Decoder, error) {
	ffmpegPath, err := findFFmpeg(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}

	size := opts.IndexCacheSize
	if size <= 0 {
		size = 8
	}
	indexes, err := lru.New[string, *trackIndex](size)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		ffmpegPath: ffmpegPath,
		fs:         fs,
		logger:     logger.WithComponent("h264decoder"),
		indexes:    indexes,
	}, nil
}

// IsAvailable reports whether ffmpeg can be found, honouring a custom path.
func IsAvailable(customPath string) bool {
	_, err := findFFmpeg(customPath)
	return err == nil
}

// DecodeFrame decodes the frame of source displayed at timestampMs.
func (d *Decoder) DecodeFrame(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
	idx, err := d.index(source)
	if err != nil {
		return nil, err
	}

	gop, err := idx.gopFor(timestampMs)
	if err != nil {
		return nil, fmt.Errorf("%w: %dms in %s", err, timestampMs, source)
	}

	stream, err := idx.annexB(gop)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Decoding %d samples from keyframe %d", len(gop.samples), gop.keyframe)
	return d.decodeStream(ctx, stream, gop.ordinal)
}

// index returns the parsed sample table of path, parsing it at most once
// per cache lifetime even under concurrent callers.
func (d *Decoder) index(path string) (*trackIndex, error) {
	if idx, ok := d.indexes.Get(path); ok {
		return idx, nil
	}

	v, err, _ := d.loads.Do(path, func() (any, error) {
		idx, err := loadIndex(path)
		if err != nil {
			return nil, err
		}
		d.indexes.Add(path, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*trackIndex), nil
}

// Forget drops the parsed sample table of path, e.g. after the file changed.
func (d *Decoder) Forget(path string) {
	d.indexes.Remove(path)
}

// decodeStream decodes an Annex B stream with ffmpeg and returns the frame
// at output position ordinal.
func (d *Decoder) decodeStream(ctx context.Context, stream []byte, ordinal int) (image.Image, error) {
	if len(stream) == 0 {
		return nil, ErrDecodeFailed
	}

	inputPath, err := d.fs.CreateTemp("h264gop_*.h264")
	if err != nil {
		return nil, fmt.Errorf("create input temp file: %w", err)
	}
	defer d.fs.Remove(inputPath)

	if err := d.fs.WriteFile(inputPath, stream); err != nil {
		return nil, fmt.Errorf("write stream: %w", err)
	}

	outputPath, err := d.fs.CreateTemp("h264frame_*.png")
	if err != nil {
		return nil, fmt.Errorf("create output temp file: %w", err)
	}
	defer d.fs.Remove(outputPath)

	args := []string{
		"-y",
		"-loglevel", "error",
		"-f", "h264",
		"-i", inputPath,
		"-vf", "select=eq(n\\," + strconv.Itoa(ordinal) + ")",
		"-vsync", "0",
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "png",
		outputPath,
	}
	d.logger.Debug("Running ffmpeg: %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v\nstderr: %s", ErrDecodeFailed, err, stderr.String())
	}

	data, err := d.fs.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read decoded image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrDecodeFailed
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

var _ ports.FrameDecoder = (*Decoder)(nil)
