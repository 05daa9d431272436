package ports

import (
	"image"
)

// FrameSink abstracts debug output for decoded frames.
// It allows dumping what the background loader produced for inspection.
type FrameSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveFrame saves a decoded frame of source at timestampMs.
	SaveFrame(source string, timestampMs int64, img image.Image) error

	// SaveStatsJSON saves a cache statistics snapshot as JSON.
	SaveStatsJSON(data []byte) error
}
