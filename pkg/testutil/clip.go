// Package testutil provides helpers shared by adapter tests.
package testutil

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
)

// ClipOptions describes a synthetic test clip.
type ClipOptions struct {
	Width      int
	Height     int
	FrameRate  int
	Seconds    float64
	GOP        int  // Keyframe interval in frames (default: FrameRate)
	Fragmented bool // Write a fragmented MP4
}

// FFmpegPath returns the ffmpeg binary or skips the test when it is missing.
func FFmpegPath(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not available")
	}
	return path
}

// MakeClip renders an H.264 test pattern into an MP4 file under t.TempDir.
// The test is skipped when ffmpeg or libx264 is unavailable.
func MakeClip(t *testing.T, opts ClipOptions) string {
	t.Helper()
	ffmpeg := FFmpegPath(t)

	if opts.Width == 0 {
		opts.Width = 160
	}
	if opts.Height == 0 {
		opts.Height = 120
	}
	if opts.FrameRate == 0 {
		opts.FrameRate = 30
	}
	if opts.Seconds == 0 {
		opts.Seconds = 1
	}
	if opts.GOP == 0 {
		opts.GOP = opts.FrameRate
	}

	out := filepath.Join(t.TempDir(), "clip.mp4")
	args := []string{
		"-y", "-loglevel", "error",
		"-f", "lavfi",
		"-i", "testsrc=size=" + strconv.Itoa(opts.Width) + "x" + strconv.Itoa(opts.Height) +
			":rate=" + strconv.Itoa(opts.FrameRate),
		"-t", strconv.FormatFloat(opts.Seconds, 'f', -1, 64),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(opts.GOP),
		"-bf", "0",
	}
	if opts.Fragmented {
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof")
	}
	args = append(args, out)

	if output, err := exec.Command(ffmpeg, args...).CombinedOutput(); err != nil {
		t.Skipf("ffmpeg could not render test clip: %v\n%s", err, output)
	}
	return out
}
