package mocks

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/user/framecache/pkg/ports"
)

// FrameDecoder is a mock implementation of ports.FrameDecoder.
// Without DecodeFrameFunc it returns a 4x4 RGBA frame (64 bytes).
type FrameDecoder struct {
	DecodeFrameFunc func(ctx context.Context, source string, timestampMs int64) (image.Image, error)

	mu    sync.Mutex
	calls []DecodeCall
}

// DecodeCall records a call to DecodeFrame.
type DecodeCall struct {
	Source      string
	TimestampMs int64
}

func (m *FrameDecoder) DecodeFrame(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
	m.mu.Lock()
	m.calls = append(m.calls, DecodeCall{Source: source, TimestampMs: timestampMs})
	m.mu.Unlock()

	if m.DecodeFrameFunc != nil {
		return m.DecodeFrameFunc(ctx, source, timestampMs)
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

// Calls returns a copy of the recorded calls.
func (m *FrameDecoder) Calls() []DecodeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DecodeCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times DecodeFrame was called for (source, timestampMs).
func (m *FrameDecoder) CallCount(source string, timestampMs int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Source == source && c.TimestampMs == timestampMs {
			n++
		}
	}
	return n
}

var _ ports.FrameDecoder = (*FrameDecoder)(nil)

func frameName(source string, timestampMs int64) string {
	return fmt.Sprintf("%s@%d", source, timestampMs)
}
