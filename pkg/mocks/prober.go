package mocks

import "github.com/user/framecache/pkg/ports"

// MediaProber is a mock implementation of ports.MediaProber.
type MediaProber struct {
	ProbeFunc func(path string) (ports.MediaInfo, error)

	// Recorded calls for verification
	ProbedPaths []string
}

func (m *MediaProber) Probe(path string) (ports.MediaInfo, error) {
	m.ProbedPaths = append(m.ProbedPaths, path)
	if m.ProbeFunc != nil {
		return m.ProbeFunc(path)
	}
	return ports.MediaInfo{Codec: "h264", Width: 320, Height: 240, DurationMs: 1000, FrameRate: 30}, nil
}

var _ ports.MediaProber = (*MediaProber)(nil)
