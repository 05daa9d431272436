package framecache

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/user/framecache/pkg/adapters/logger"
	"github.com/user/framecache/pkg/mocks"
)

const waitTimeout = 2 * time.Second

// gatedDecoder blocks every decode until release is closed.
type gatedDecoder struct {
	mocks.FrameDecoder
	started chan Key
	release chan struct{}
}

func newGatedDecoder() *gatedDecoder {
	d := &gatedDecoder{
		started: make(chan Key, 64),
		release: make(chan struct{}),
	}
	d.DecodeFrameFunc = func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
		d.started <- NewKey(source, timestampMs)
		select {
		case <-d.release:
			return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d
}

// resultCollector gathers loader results for assertions.
type resultCollector struct {
	mu      sync.Mutex
	results []Result
	ch      chan Result
}

func newResultCollector() *resultCollector {
	return &resultCollector{ch: make(chan Result, 64)}
}

func (c *resultCollector) handle(res Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	c.ch <- res
}

func (c *resultCollector) wait(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-c.ch:
		return res
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a loader result")
		return Result{}
	}
}

func waitForKey(t *testing.T, ch <-chan Key) Key {
	t.Helper()
	select {
	case key := <-ch:
		return key
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for decode to start")
		return Key{}
	}
}

func waitForState(t *testing.T, l *Loader, want LoaderState) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if l.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected state %s, got %s", want, l.State())
}

func TestLoader_DecodesDuplicateRequestOnce(t *testing.T) {
	dec := newGatedDecoder()
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)
	defer l.Stop()

	key := NewKey("clip.mp4", 1000)
	if queued, err := l.Request(Request{Key: key}); err != nil || !queued {
		t.Fatalf("expected request to be queued, got %v %v", queued, err)
	}
	waitForKey(t, dec.started)

	if queued, _ := l.Request(Request{Key: key}); queued {
		t.Error("expected in-flight key not to be queued again")
	}
	if !l.Pending(key) {
		t.Error("expected in-flight key to be pending")
	}

	close(dec.release)
	res := results.wait(t)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	waitForState(t, l, StateIdle)

	if n := dec.CallCount("clip.mp4", 1000); n != 1 {
		t.Errorf("expected 1 decode, got %d", n)
	}
}

func TestLoader_ServicesRequestsInFIFOOrder(t *testing.T) {
	dec := newGatedDecoder()
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)
	defer l.Stop()

	order := []int64{500, 100, 300, 200}
	for _, ts := range order {
		l.Request(Request{Key: NewKey("clip", ts)})
	}
	close(dec.release)

	for i, want := range order {
		res := results.wait(t)
		if res.TimestampMs != want {
			t.Errorf("result %d: expected %dms, got %dms", i, want, res.TimestampMs)
		}
	}
}

func TestLoader_ContinuesAfterDecodeError(t *testing.T) {
	errBroken := errors.New("broken sample")
	dec := &mocks.FrameDecoder{
		DecodeFrameFunc: func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
			if timestampMs == 0 {
				return nil, errBroken
			}
			return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
		},
	}
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)
	defer l.Stop()

	l.Request(Request{Key: NewKey("clip", 0)})
	l.Request(Request{Key: NewKey("clip", 33)})

	first := results.wait(t)
	if !errors.Is(first.Err, errBroken) {
		t.Errorf("expected decode error, got %v", first.Err)
	}
	second := results.wait(t)
	if second.Err != nil || second.Image == nil {
		t.Errorf("expected decoded frame after error, got %v", second.Err)
	}
}

func TestLoader_NilImageIsAnError(t *testing.T) {
	dec := &mocks.FrameDecoder{
		DecodeFrameFunc: func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
			return nil, nil
		},
	}
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)
	defer l.Stop()

	l.Request(Request{Key: NewKey("clip", 0)})
	if res := results.wait(t); !errors.Is(res.Err, ErrEmptyFrame) {
		t.Errorf("expected ErrEmptyFrame, got %v", res.Err)
	}
}

func TestLoader_RecoversDecoderPanic(t *testing.T) {
	dec := &mocks.FrameDecoder{
		DecodeFrameFunc: func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
			if timestampMs == 0 {
				panic("corrupt bitstream")
			}
			return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
		},
	}
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)
	defer l.Stop()

	l.Request(Request{Key: NewKey("clip", 0)})
	l.Request(Request{Key: NewKey("clip", 33)})

	if res := results.wait(t); !errors.Is(res.Err, ErrDecoderPanic) {
		t.Errorf("expected ErrDecoderPanic, got %v", res.Err)
	}
	if res := results.wait(t); res.Err != nil {
		t.Errorf("expected loader to keep running, got %v", res.Err)
	}
}

func TestLoader_SkipsSettledRequests(t *testing.T) {
	dec := &mocks.FrameDecoder{}
	results := newResultCollector()
	skip := func(req Request) bool { return req.TimestampMs == 33 }
	l := NewLoader(dec, logger.NewNoop(), results.handle, skip)
	defer l.Stop()

	l.Request(Request{Key: NewKey("clip", 0)})
	l.Request(Request{Key: NewKey("clip", 33)})
	l.Request(Request{Key: NewKey("clip", 66)})

	results.wait(t)
	results.wait(t)
	waitForState(t, l, StateIdle)

	if n := dec.CallCount("clip", 33); n != 0 {
		t.Errorf("expected skipped request not to be decoded, got %d calls", n)
	}
	if len(dec.Calls()) != 2 {
		t.Errorf("expected 2 decodes, got %d", len(dec.Calls()))
	}
}

func TestLoader_StateTransitions(t *testing.T) {
	dec := newGatedDecoder()
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)

	if l.State() != StateIdle {
		t.Fatalf("expected new loader to be idle, got %s", l.State())
	}

	l.Request(Request{Key: NewKey("clip", 0)})
	waitForKey(t, dec.started)
	if l.State() != StateRunning {
		t.Errorf("expected running while decoding, got %s", l.State())
	}

	close(dec.release)
	results.wait(t)
	waitForState(t, l, StateIdle)

	l.Stop()
	if l.State() != StateStopped {
		t.Errorf("expected stopped after Stop, got %s", l.State())
	}
}

func TestLoader_StopAbortsDecodeAndRejectsRequests(t *testing.T) {
	dec := newGatedDecoder()
	results := newResultCollector()
	l := NewLoader(dec, logger.NewNoop(), results.handle, nil)

	l.Request(Request{Key: NewKey("clip", 0)})
	l.Request(Request{Key: NewKey("clip", 33)})
	waitForKey(t, dec.started)

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(waitTimeout):
		t.Fatal("Stop did not return after cancelling the decode")
	}

	if l.State() != StateStopped {
		t.Errorf("expected stopped, got %s", l.State())
	}
	if _, err := l.Request(Request{Key: NewKey("clip", 66)}); !errors.Is(err, ErrLoaderStopped) {
		t.Errorf("expected ErrLoaderStopped, got %v", err)
	}
	if n := dec.CallCount("clip", 33); n != 0 {
		t.Errorf("expected queued request to be dropped, got %d decodes", n)
	}

	results.mu.Lock()
	defer results.mu.Unlock()
	if len(results.results) != 0 {
		t.Errorf("expected no results after Stop, got %d", len(results.results))
	}

	// Stop is idempotent.
	l.Stop()
}

func TestLoader_StopBeforeStart(t *testing.T) {
	l := NewLoader(&mocks.FrameDecoder{}, logger.NewNoop(), func(Result) {}, nil)
	l.Stop()

	if l.State() != StateStopped {
		t.Errorf("expected stopped, got %s", l.State())
	}
	if _, err := l.Request(Request{Key: NewKey("clip", 0)}); !errors.Is(err, ErrLoaderStopped) {
		t.Errorf("expected ErrLoaderStopped, got %v", err)
	}
}

func TestLoaderState_String(t *testing.T) {
	tests := map[LoaderState]string{
		StateIdle:       "idle",
		StateRunning:    "running",
		StateStopping:   "stopping",
		StateStopped:    "stopped",
		LoaderState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
