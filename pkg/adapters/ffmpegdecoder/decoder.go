// Package ffmpegdecoder extracts single frames with the ffmpeg CLI.
//
// It works for any container and codec ffmpeg understands. Seeking is
// done on the input side, so accuracy depends on ffmpeg's own seeking.
package ffmpegdecoder

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

	"github.com/user/framecache/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not found.
	ErrFFmpegNotFound = errors.New("ffmpegdecoder: ffmpeg not found in PATH")

	// ErrNoFrame is returned when ffmpeg exits cleanly without writing a frame,
	// typically because the timestamp lies past the end of the source.
	ErrNoFrame = errors.New("ffmpegdecoder: no frame at timestamp")

	// ErrNegativeTimestamp is returned for timestamps before the start of the source.
	ErrNegativeTimestamp = errors.New("ffmpegdecoder: negative timestamp")
)

// Options configures the decoder.
type Options struct {
	FFmpegPath string // Custom path to the ffmpeg binary (default: search PATH)
}

// Decoder implements ports.FrameDecoder by running one ffmpeg process per frame.
type Decoder struct {
	ffmpegPath string
	fs         ports.FileSystem
	logger     ports.Logger
}

// New creates a decoder. It fails if ffmpeg cannot be found.
func New(opts Options, fs ports.FileSystem, logger ports.Logger) (*Decoder, error) {
	path, err := lookPath(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		ffmpegPath: path,
		fs:         fs,
		logger:     logger.WithComponent("ffmpeg"),
	}, nil
}

func lookPath(customPath string) (string, error) {
	name := "ffmpeg"
	if customPath != "" {
		name = customPath
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFFmpegNotFound, name)
	}
	return path, nil
}

// DecodeFrame grabs the frame of source at timestampMs.
func (d *Decoder) DecodeFrame(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
	if timestampMs < 0 {
		return nil, fmt.Errorf("%w: %dms", ErrNegativeTimestamp, timestampMs)
	}

	outputPath, err := d.fs.CreateTemp("frame_*.png")
	if err != nil {
		return nil, fmt.Errorf("create output temp file: %w", err)
	}
	defer d.fs.Remove(outputPath)

	args := Args(source, timestampMs, outputPath)
	d.logger.Debug("Running ffmpeg: %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	data, err := d.fs.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read extracted frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %dms", ErrNoFrame, timestampMs)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// Args returns the ffmpeg arguments that extract the frame at timestampMs
// from source into a PNG at output.
func Args(source string, timestampMs int64, output string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-ss", formatSeconds(timestampMs),
		"-i", source,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "png",
		output,
	}
}

// formatSeconds renders milliseconds as decimal seconds, e.g. 1033 -> "1.033".
func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

var _ ports.FrameDecoder = (*Decoder)(nil)
