package mocks

import (
	"image"
	"sync"

	"github.com/user/framecache/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink.
type FrameSink struct {
	mu sync.RWMutex

	enabled bool

	Frames    map[string]image.Image // keyed by "source@timestamp"
	StatsJSON []byte
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink(enabled bool) *FrameSink {
	return &FrameSink{
		enabled: enabled,
		Frames:  make(map[string]image.Image),
	}
}

func (m *FrameSink) Enabled() bool {
	return m.enabled
}

func (m *FrameSink) SaveFrame(source string, timestampMs int64, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[frameName(source, timestampMs)] = img
	return nil
}

func (m *FrameSink) SaveStatsJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatsJSON = data
	return nil
}

// FrameCount returns the number of saved frames.
func (m *FrameSink) FrameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Frames)
}

var _ ports.FrameSink = (*FrameSink)(nil)
