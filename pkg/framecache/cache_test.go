package framecache

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/user/framecache/pkg/adapters/logger"
	"github.com/user/framecache/pkg/mocks"
)

// halfMB is the byte cost of a 131072x1 RGBA frame.
const halfMB = 512 * 1024

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, dec *mocks.FrameDecoder, opts Options) *Cache {
	t.Helper()
	c, err := New(dec, logger.NewNoop(), opts)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func smallOptions() Options {
	opts := DefaultOptions()
	opts.CacheAhead = 0
	opts.CacheBehind = 0
	return opts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		want   error
	}{
		{"negative size", func(o *Options) { o.MaxCacheSizeMB = -1 }, ErrInvalidCacheSize},
		{"negative ahead", func(o *Options) { o.CacheAhead = -1 }, ErrInvalidFrameCount},
		{"negative behind", func(o *Options) { o.CacheBehind = -2 }, ErrInvalidFrameCount},
		{"zero fps", func(o *Options) { o.FrameRate = 0 }, ErrInvalidFrameRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			if _, err := New(&mocks.FrameDecoder{}, logger.NewNoop(), opts); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCache_HitMissAccounting(t *testing.T) {
	c := newTestCache(t, &mocks.FrameDecoder{}, smallOptions())

	c.Insert("clip.mp4", 0, image.NewRGBA(image.Rect(0, 0, 2, 2)))

	if _, ok := c.Get("clip.mp4", 0); !ok {
		t.Error("expected hit for inserted frame")
	}
	if _, ok := c.Get("clip.mp4", 33); ok {
		t.Error("expected miss for unknown frame")
	}
	c.Get("clip.mp4", 0)

	if c.HitCount() != 2 || c.MissCount() != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %d and %d", c.HitCount(), c.MissCount())
	}
	if ratio := c.Stats().HitRatio(); ratio < 0.66 || ratio > 0.67 {
		t.Errorf("unexpected hit ratio %f", ratio)
	}

	c.Contains("clip.mp4", 66)
	c.Peek("clip.mp4", 66)
	if c.MissCount() != 1 {
		t.Error("Contains and Peek must not count as lookups")
	}
	if _, ok := c.Peek("clip.mp4", 0); !ok || c.HitCount() != 2 {
		t.Error("Peek must return the frame without counting a hit")
	}

	c.ResetStatistics()
	if c.HitCount() != 0 || c.MissCount() != 0 {
		t.Error("expected counters to be zero after reset")
	}
	if !c.Contains("clip.mp4", 0) {
		t.Error("resetting statistics must keep cached frames")
	}
}

func TestCache_GetFrameSchedulesWindow(t *testing.T) {
	dec := newGatedDecoder()
	opts := DefaultOptions()
	opts.CacheAhead = 2
	opts.CacheBehind = 1
	c := newTestCache(t, &dec.FrameDecoder, opts)

	if _, ok := c.GetFrame("clip.mp4", 1000); ok {
		t.Fatal("expected miss on empty cache")
	}
	if got := waitForKey(t, dec.started); got != NewKey("clip.mp4", 1000) {
		t.Errorf("expected requested frame to be decoded first, got %v", got)
	}

	var pending []int64
	for _, req := range c.Pending() {
		pending = append(pending, req.TimestampMs)
	}
	if want := []int64{1033, 1066, 967}; !reflect.DeepEqual(pending, want) {
		t.Errorf("expected pending %v, got %v", want, pending)
	}

	// A second miss for the same frame queues nothing new.
	c.GetFrame("clip.mp4", 1000)
	if len(c.Pending()) != 3 {
		t.Errorf("expected 3 pending requests, got %d", len(c.Pending()))
	}
	if c.MissCount() != 2 {
		t.Errorf("expected 2 misses, got %d", c.MissCount())
	}

	close(dec.release)
	waitFor(t, "window to load", func() bool {
		return c.Contains("clip.mp4", 1000) && c.Contains("clip.mp4", 1033) &&
			c.Contains("clip.mp4", 1066) && c.Contains("clip.mp4", 967)
	})

	if f, ok := c.GetFrame("clip.mp4", 1000); !ok || f.Key() != NewKey("clip.mp4", 1000) {
		t.Error("expected hit after background load")
	}
	if n := dec.CallCount("clip.mp4", 1000); n != 1 {
		t.Errorf("expected a single decode of the requested frame, got %d", n)
	}
}

func TestCache_FrameAvailableNotification(t *testing.T) {
	dec := &mocks.FrameDecoder{}
	c := newTestCache(t, dec, smallOptions())

	events := make(chan FrameEvent, 4)
	unsubscribe := c.OnFrameAvailable(func(ev FrameEvent) { events <- ev })

	c.GetFrame("clip.mp4", 500)

	select {
	case ev := <-events:
		if ev.Key != NewKey("clip.mp4", 500) {
			t.Errorf("unexpected event key %v", ev.Key)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for frame event")
	}

	if !c.Contains("clip.mp4", 500) {
		t.Error("frame must be cached before the event fires")
	}
	if c.Stats().Loads != 1 {
		t.Errorf("expected 1 load, got %d", c.Stats().Loads)
	}

	unsubscribe()
	c.GetFrame("clip.mp4", 600)
	waitFor(t, "second frame", func() bool { return c.Contains("clip.mp4", 600) })
	select {
	case ev := <-events:
		t.Errorf("unexpected event after unsubscribe: %v", ev)
	default:
	}
}

func TestCache_LRUUnderBudget(t *testing.T) {
	opts := smallOptions()
	opts.MaxCacheSizeMB = 1
	c := newTestCache(t, &mocks.FrameDecoder{}, opts)

	for _, src := range []string{"a", "b", "c"} {
		c.Insert(src, 0, rgbaOfSize(halfMB))
	}

	if c.Contains("a", 0) {
		t.Error("expected oldest frame to be evicted")
	}
	if !c.Contains("b", 0) || !c.Contains("c", 0) {
		t.Error("expected the two newest frames to remain")
	}
	if c.SizeMB() != 1.0 {
		t.Errorf("expected 1.0 MB in use, got %f", c.SizeMB())
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", c.Stats().Evictions)
	}
}

func TestCache_ShrinkingBudgetEvicts(t *testing.T) {
	opts := smallOptions()
	opts.MaxCacheSizeMB = 2
	c := newTestCache(t, &mocks.FrameDecoder{}, opts)

	for i := int64(0); i < 4; i++ {
		c.Insert("clip", i*33, rgbaOfSize(halfMB))
	}

	if err := c.SetMaxCacheSizeMB(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.SizeBytes() > 1024*1024 {
		t.Errorf("expected usage within 1 MB, got %d bytes", c.SizeBytes())
	}
	if c.Contains("clip", 0) || !c.Contains("clip", 99) {
		t.Error("expected least recently used frames to go first")
	}
	if c.MaxCacheSizeMB() != 1 {
		t.Errorf("expected 1 MB budget, got %d", c.MaxCacheSizeMB())
	}

	if err := c.SetMaxCacheSizeMB(-1); !errors.Is(err, ErrInvalidCacheSize) {
		t.Errorf("expected ErrInvalidCacheSize, got %v", err)
	}
	if c.MaxCacheSizeMB() != 1 {
		t.Error("rejected budget must leave the configuration untouched")
	}
}

func TestCache_ClearResetsEverything(t *testing.T) {
	dec := newGatedDecoder()
	opts := DefaultOptions()
	opts.CacheAhead = 3
	opts.CacheBehind = 0
	c := newTestCache(t, &dec.FrameDecoder, opts)

	c.Insert("clip.mp4", 5000, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	c.Get("clip.mp4", 5000)
	c.GetFrame("clip.mp4", 0)
	waitForKey(t, dec.started)

	c.Clear()

	if c.SizeBytes() != 0 || c.Contains("clip.mp4", 5000) {
		t.Error("expected empty cache after Clear")
	}
	if len(c.Pending()) != 0 {
		t.Errorf("expected no pending requests, got %d", len(c.Pending()))
	}
	if c.HitCount() != 0 || c.MissCount() != 0 {
		t.Error("expected statistics to be reset")
	}

	// The decode that was in flight completes into the cleared cache.
	close(dec.release)
	waitFor(t, "stale completion", func() bool { return c.Stats().StaleDiscards == 1 })

	if c.Contains("clip.mp4", 0) {
		t.Error("stale completion must not be inserted")
	}
	if n := dec.CallCount("clip.mp4", 33); n != 0 {
		t.Errorf("expected cleared requests not to be decoded, got %d", n)
	}
}

func TestCache_RequestAfterClearIsNotDeduplicatedAgainstStaleWork(t *testing.T) {
	dec := newGatedDecoder()
	c := newTestCache(t, &dec.FrameDecoder, smallOptions())

	c.GetFrame("clip.mp4", 0)
	waitForKey(t, dec.started)
	c.Clear()
	c.GetFrame("clip.mp4", 0)

	if len(c.Pending()) != 1 {
		t.Fatalf("expected fresh request to be queued, got %d", len(c.Pending()))
	}

	close(dec.release)
	waitFor(t, "fresh frame", func() bool { return c.Contains("clip.mp4", 0) })
	if n := dec.CallCount("clip.mp4", 0); n != 2 {
		t.Errorf("expected 2 decodes, got %d", n)
	}
}

func TestCache_ErrorNotificationAndRetry(t *testing.T) {
	errBoom := errors.New("boom")
	dec := &mocks.FrameDecoder{
		DecodeFrameFunc: func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
			return nil, errBoom
		},
	}
	c := newTestCache(t, dec, smallOptions())
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c.now = clock.Now

	errs := make(chan ErrorEvent, 4)
	c.OnCacheError(func(ev ErrorEvent) { errs <- ev })

	c.GetFrame("clip.mp4", 1000)

	var ev ErrorEvent
	select {
	case ev = <-errs:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error event")
	}
	if !errors.Is(ev.Err, errBoom) {
		t.Errorf("expected decoder error, got %v", ev.Err)
	}
	if want := "Failed to load frame at 1000ms from clip.mp4: boom"; ev.Message != want {
		t.Errorf("expected message %q, got %q", want, ev.Message)
	}
	waitFor(t, "loader to settle", func() bool { return !c.loader.Pending(NewKey("clip.mp4", 1000)) })

	// Within the retry delay the failed frame is not scheduled again.
	c.GetFrame("clip.mp4", 1000)
	if len(c.Pending()) != 0 {
		t.Error("expected failed frame to be left alone")
	}
	if err := c.LastError("clip.mp4", 1000); !errors.Is(err, errBoom) {
		t.Errorf("expected LastError to report boom, got %v", err)
	}

	clock.Advance(6 * time.Second)
	if err := c.LastError("clip.mp4", 1000); err != nil {
		t.Errorf("expected no error after the retry delay, got %v", err)
	}
	c.GetFrame("clip.mp4", 1000)
	waitFor(t, "retry", func() bool { return dec.CallCount("clip.mp4", 1000) == 2 })

	if c.Stats().LoadErrors < 1 {
		t.Error("expected load errors to be counted")
	}
}

func TestCache_ReloadBypassesFailureAndCache(t *testing.T) {
	fail := true
	var mu sync.Mutex
	dec := &mocks.FrameDecoder{
		DecodeFrameFunc: func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return nil, errors.New("transient")
			}
			return image.NewRGBA(image.Rect(0, 0, 3, 3)), nil
		},
	}
	opts := smallOptions()
	opts.RetryAfter = 0
	c := newTestCache(t, dec, opts)

	errs := make(chan ErrorEvent, 1)
	c.OnCacheError(func(ev ErrorEvent) { errs <- ev })
	c.GetFrame("clip.mp4", 0)
	select {
	case <-errs:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error event")
	}
	waitFor(t, "loader to settle", func() bool { return !c.loader.Pending(NewKey("clip.mp4", 0)) })

	mu.Lock()
	fail = false
	mu.Unlock()

	c.GetFrame("clip.mp4", 0)
	if len(c.Pending()) != 0 {
		t.Fatal("expected failed frame to need an explicit reload")
	}

	if err := c.Reload("clip.mp4", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "reloaded frame", func() bool { return c.Contains("clip.mp4", 0) })

	c.Insert("clip.mp4", 33, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err := c.Reload("clip.mp4", 33); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "replaced frame", func() bool {
		f, ok := c.store.Get(NewKey("clip.mp4", 33))
		return ok && f.Size() == 36
	})
}

func TestCache_InsertCancelsQueuedRequest(t *testing.T) {
	dec := newGatedDecoder()
	opts := smallOptions()
	opts.CacheAhead = 1
	c := newTestCache(t, &dec.FrameDecoder, opts)

	c.GetFrame("clip.mp4", 0)
	waitForKey(t, dec.started)
	if len(c.Pending()) != 1 {
		t.Fatalf("expected look-ahead frame to be queued, got %d", len(c.Pending()))
	}

	if !c.Insert("clip.mp4", 33, image.NewRGBA(image.Rect(0, 0, 1, 1))) {
		t.Fatal("expected insert to succeed")
	}
	if len(c.Pending()) != 0 {
		t.Error("expected inserted frame to leave the queue")
	}

	close(dec.release)
	waitFor(t, "in-flight frame", func() bool { return c.Contains("clip.mp4", 0) })
	if n := dec.CallCount("clip.mp4", 33); n != 0 {
		t.Errorf("expected inserted frame not to be decoded, got %d", n)
	}
}

func TestCache_OversizedFrameReportsError(t *testing.T) {
	dec := &mocks.FrameDecoder{}
	c := newTestCache(t, dec, smallOptions())
	if err := c.SetMaxSize(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errs := make(chan ErrorEvent, 1)
	c.OnCacheError(func(ev ErrorEvent) { errs <- ev })
	c.GetFrame("clip.mp4", 0)

	select {
	case ev := <-errs:
		if !errors.Is(ev.Err, ErrFrameTooLarge) {
			t.Errorf("expected ErrFrameTooLarge, got %v", ev.Err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error event")
	}
	if c.SizeBytes() != 0 {
		t.Errorf("expected empty cache, got %d bytes", c.SizeBytes())
	}
	waitFor(t, "loader to settle", func() bool { return !c.loader.Pending(NewKey("clip.mp4", 0)) })

	// The oversized frame is treated as a failure and not decoded again.
	if _, ok := c.GetFrame("clip.mp4", 0); ok {
		t.Error("expected miss for oversized frame")
	}
	if n := dec.CallCount("clip.mp4", 0); n != 1 {
		t.Errorf("expected 1 decode, got %d", n)
	}
	if err := c.LastError("clip.mp4", 0); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge from LastError, got %v", err)
	}
	stats := c.Stats()
	if stats.Loads != 0 || stats.LoadErrors != 1 {
		t.Errorf("expected 0 loads and 1 load error, got %d and %d", stats.Loads, stats.LoadErrors)
	}
}

// stallingImage blocks in Bounds until released, holding a completion
// between decode and insertion.
type stallingImage struct {
	*image.RGBA
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (m *stallingImage) Bounds() image.Rectangle {
	m.once.Do(func() { close(m.entered) })
	<-m.release
	return m.RGBA.Bounds()
}

func TestCache_ClearDuringInsertionDiscardsFrame(t *testing.T) {
	img := &stallingImage{
		RGBA:    image.NewRGBA(image.Rect(0, 0, 2, 2)),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	dec := &mocks.FrameDecoder{
		DecodeFrameFunc: func(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
			return img, nil
		},
	}
	c := newTestCache(t, dec, smallOptions())

	c.GetFrame("clip.mp4", 0)
	select {
	case <-img.entered:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the completion")
	}

	c.Clear()
	close(img.release)
	waitFor(t, "stale completion", func() bool { return c.Stats().StaleDiscards == 1 })

	if c.Contains("clip.mp4", 0) || c.SizeBytes() != 0 {
		t.Error("frame decoded before Clear must not be inserted")
	}
	if n := c.Stats().Loads; n != 0 {
		t.Errorf("expected no loads, got %d", n)
	}
}

func TestCache_PrefetchRange(t *testing.T) {
	dec := newGatedDecoder()
	c := newTestCache(t, &dec.FrameDecoder, smallOptions())

	c.Insert("clip.mp4", 33, image.NewRGBA(image.Rect(0, 0, 1, 1)))

	if n := c.PrefetchRange("clip.mp4", 0, 100); n != 3 {
		t.Errorf("expected 3 queued frames, got %d", n)
	}
	if n := c.PrefetchRange("clip.mp4", 0, 100); n != 0 {
		t.Errorf("expected pending frames not to be queued twice, got %d", n)
	}
	close(dec.release)
	waitFor(t, "range to load", func() bool {
		return c.Contains("clip.mp4", 0) && c.Contains("clip.mp4", 66) && c.Contains("clip.mp4", 99)
	})
}

func TestCache_Setters(t *testing.T) {
	c := newTestCache(t, &mocks.FrameDecoder{}, DefaultOptions())

	if err := c.SetCacheAhead(5); err != nil || c.CacheAhead() != 5 {
		t.Errorf("expected ahead 5, got %d (%v)", c.CacheAhead(), err)
	}
	if err := c.SetCacheBehind(0); err != nil || c.CacheBehind() != 0 {
		t.Errorf("expected behind 0, got %d (%v)", c.CacheBehind(), err)
	}
	if err := c.SetFrameRate(25); err != nil || c.FrameRate() != 25 {
		t.Errorf("expected 25 fps, got %g (%v)", c.FrameRate(), err)
	}

	if err := c.SetCacheAhead(-1); !errors.Is(err, ErrInvalidFrameCount) {
		t.Errorf("expected ErrInvalidFrameCount, got %v", err)
	}
	if err := c.SetCacheBehind(-1); !errors.Is(err, ErrInvalidFrameCount) {
		t.Errorf("expected ErrInvalidFrameCount, got %v", err)
	}
	if err := c.SetFrameRate(-30); !errors.Is(err, ErrInvalidFrameRate) {
		t.Errorf("expected ErrInvalidFrameRate, got %v", err)
	}
	if c.CacheAhead() != 5 || c.FrameRate() != 25 {
		t.Error("rejected values must leave the configuration untouched")
	}
}

func TestCache_CloseStopsLoader(t *testing.T) {
	dec := &mocks.FrameDecoder{}
	c, err := New(dec, logger.NewNoop(), smallOptions())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	c.Insert("clip.mp4", 0, image.NewRGBA(image.Rect(0, 0, 1, 1)))

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.LoaderState() != StateStopped {
		t.Errorf("expected stopped loader, got %s", c.LoaderState())
	}

	if _, ok := c.GetFrame("clip.mp4", 0); !ok {
		t.Error("cached frames stay readable after Close")
	}
	if _, ok := c.GetFrame("clip.mp4", 33); ok {
		t.Error("expected miss after Close")
	}
	if len(dec.Calls()) != 0 {
		t.Errorf("expected no decodes after Close, got %d", len(dec.Calls()))
	}
	if err := c.Reload("clip.mp4", 0); !errors.Is(err, ErrLoaderStopped) {
		t.Errorf("expected ErrLoaderStopped, got %v", err)
	}
}
