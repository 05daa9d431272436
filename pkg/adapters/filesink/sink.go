// Package filesink provides a file-based debug sink for decoded frames.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/user/framecache/pkg/ports"
)

// Sink saves decoded frames and statistics snapshots to files.
//
// Frames land in <baseDir>/frames/<source name>/<timestamp>ms.png.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFrame saves a decoded frame as PNG.
func (s *Sink) SaveFrame(source string, timestampMs int64, img image.Image) error {
	dir := filepath.Join(s.baseDir, "frames", sourceDir(source))
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%08dms.png", timestampMs))
	return s.fs.WriteFile(path, data)
}

// SaveStatsJSON saves a cache statistics snapshot as JSON.
func (s *Sink) SaveStatsJSON(data []byte) error {
	path := filepath.Join(s.baseDir, "stats.json")
	return s.fs.WriteFile(path, data)
}

// sourceDir turns a source identifier into a single path element.
func sourceDir(source string) string {
	name := filepath.Base(source)
	if name == string(filepath.Separator) {
		return "source"
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "source"
	}
	return name
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
