package framecache

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/framecache/pkg/ports"
)

const bytesPerMB = 1024 * 1024

// Options configures a Cache.
type Options struct {
	MaxCacheSizeMB int     // Byte budget in megabytes (default: 512)
	CacheAhead     int     // Frames prefetched after a missed timestamp (default: 30)
	CacheBehind    int     // Frames prefetched before a missed timestamp (default: 30)
	FrameRate      float64 // Assumed fps used to space prefetched frames (default: 30)

	// RetryAfter is how long a failed frame is left alone before a lookup may
	// schedule it again. Zero or negative means only Reload retries it.
	RetryAfter time.Duration
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		MaxCacheSizeMB: 512,
		CacheAhead:     30,
		CacheBehind:    30,
		FrameRate:      DefaultFrameRate,
		RetryAfter:     5 * time.Second,
	}
}

// Validate checks that the options describe a usable cache.
func (o Options) Validate() error {
	if o.MaxCacheSizeMB < 0 {
		return fmt.Errorf("%w: %d MB", ErrInvalidCacheSize, o.MaxCacheSizeMB)
	}
	if o.CacheAhead < 0 || o.CacheBehind < 0 {
		return fmt.Errorf("%w: ahead %d, behind %d", ErrInvalidFrameCount, o.CacheAhead, o.CacheBehind)
	}
	if o.FrameRate <= 0 {
		return fmt.Errorf("%w: %g fps", ErrInvalidFrameRate, o.FrameRate)
	}
	return nil
}

// Cache is the decoded-frame cache.
//
// GetFrame is the synchronous entry point for callers: it answers from the
// store or returns a miss at once and lets the background loader fill the
// store. Listeners registered with OnFrameAvailable learn when a missed
// frame arrives.
type Cache struct {
	store  *Store
	loader *Loader
	events *notifier
	logger ports.Logger
	now    func() time.Time

	stats counters
	epoch atomic.Uint64

	// clearMu orders Clear against completions: a result is checked against
	// the epoch and stored under the read lock, Clear bumps and purges under
	// the write lock.
	clearMu sync.RWMutex

	mu             sync.Mutex
	policy         PrefetchPolicy
	maxCacheSizeMB int
	retryAfter     time.Duration
	failures       map[Key]failure
}

// failure records when a frame last failed to load and why.
type failure struct {
	at  time.Time
	err error
}

// New creates a cache that decodes misses with decoder.
func New(decoder ports.FrameDecoder, logger ports.Logger, opts Options) (*Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	store, err := NewStore(int64(opts.MaxCacheSizeMB) * bytesPerMB)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		store:  store,
		events: newNotifier(),
		logger: logger.WithComponent("framecache"),
		now:    time.Now,
		policy: PrefetchPolicy{
			Ahead:     opts.CacheAhead,
			Behind:    opts.CacheBehind,
			FrameRate: opts.FrameRate,
		},
		maxCacheSizeMB: opts.MaxCacheSizeMB,
		retryAfter:     opts.RetryAfter,
		failures:       make(map[Key]failure),
	}
	c.loader = NewLoader(decoder, c.logger, c.handleResult, c.isSettled)
	return c, nil
}

// Get returns the cached frame without scheduling anything on a miss.
// A hit marks the frame most recently used. Both outcomes are counted.
func (c *Cache) Get(source string, timestampMs int64) (*Frame, bool) {
	f, ok := c.store.Get(NewKey(source, timestampMs))
	if ok {
		c.stats.hits.Add(1)
	} else {
		c.stats.misses.Add(1)
	}
	return f, ok
}

// GetFrame returns the cached frame, or schedules it together with its
// prefetch window and returns false immediately.
func (c *Cache) GetFrame(source string, timestampMs int64) (*Frame, bool) {
	if f, ok := c.Get(source, timestampMs); ok {
		return f, true
	}

	c.schedule(NewKey(source, timestampMs))

	c.mu.Lock()
	window := c.policy.Window(timestampMs)
	c.mu.Unlock()

	for _, ts := range window {
		key := NewKey(source, ts)
		if !c.store.Contains(key) {
			c.schedule(key)
		}
	}
	return nil, false
}

// PrefetchRange schedules every frame between start and end (inclusive)
// at the frame interval, skipping cached ones. It returns how many
// requests were queued.
func (c *Cache) PrefetchRange(source string, startMs, endMs int64) int {
	c.mu.Lock()
	timestamps := c.policy.Range(startMs, endMs)
	c.mu.Unlock()

	queued := 0
	for _, ts := range timestamps {
		key := NewKey(source, ts)
		if c.store.Contains(key) {
			continue
		}
		if c.schedule(key) {
			queued++
		}
	}
	return queued
}

// Reload schedules a decode of the frame even if it is cached or failed before.
func (c *Cache) Reload(source string, timestampMs int64) error {
	key := NewKey(source, timestampMs)

	c.mu.Lock()
	delete(c.failures, key)
	c.mu.Unlock()
	c.store.Remove(key)

	_, err := c.loader.Request(Request{Key: key, Epoch: c.epoch.Load()})
	return err
}

// Insert stores img under (source, timestampMs), replacing any previous
// frame, and cancels a queued decode of the same key. The cache takes
// ownership of img. It returns false if the frame alone exceeds the budget.
func (c *Cache) Insert(source string, timestampMs int64, img image.Image) bool {
	key := NewKey(source, timestampMs)
	stored := c.store.Add(newFrame(key, img))
	c.loader.Forget(key)

	c.mu.Lock()
	delete(c.failures, key)
	c.mu.Unlock()
	return stored
}

// LastError returns the error of the frame's last failed load while lookups
// still skip it, or nil.
func (c *Cache) LastError(source string, timestampMs int64) error {
	return c.recentFailure(NewKey(source, timestampMs))
}

// Peek returns the cached frame without affecting statistics or recency.
func (c *Cache) Peek(source string, timestampMs int64) (*Frame, bool) {
	return c.store.Peek(NewKey(source, timestampMs))
}

// Contains reports whether the frame is cached, without affecting
// statistics or recency.
func (c *Cache) Contains(source string, timestampMs int64) bool {
	return c.store.Contains(NewKey(source, timestampMs))
}

// Clear removes every frame, drops queued requests, forgets failures and
// resets statistics. Decodes already in flight are discarded when they
// complete.
func (c *Cache) Clear() {
	c.clearMu.Lock()
	c.epoch.Add(1)
	dropped := c.loader.Drain()
	c.store.Purge()

	c.mu.Lock()
	c.failures = make(map[Key]failure)
	c.mu.Unlock()

	c.ResetStatistics()
	c.clearMu.Unlock()
	c.logger.Debug("Cache cleared, %d queued requests dropped", dropped)
}

// SetMaxSize sets the budget in bytes, evicting at once if usage exceeds it.
func (c *Cache) SetMaxSize(bytes int64) error {
	if err := c.store.SetMaxCost(bytes); err != nil {
		return fmt.Errorf("%w: %d bytes", err, bytes)
	}
	c.mu.Lock()
	c.maxCacheSizeMB = int(bytes / bytesPerMB)
	c.mu.Unlock()
	return nil
}

// SetMaxCacheSizeMB sets the budget in megabytes.
func (c *Cache) SetMaxCacheSizeMB(megabytes int) error {
	if megabytes < 0 {
		return fmt.Errorf("%w: %d MB", ErrInvalidCacheSize, megabytes)
	}
	if err := c.store.SetMaxCost(int64(megabytes) * bytesPerMB); err != nil {
		return err
	}
	c.mu.Lock()
	c.maxCacheSizeMB = megabytes
	c.mu.Unlock()
	return nil
}

// MaxCacheSizeMB returns the budget in megabytes.
func (c *Cache) MaxCacheSizeMB() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxCacheSizeMB
}

// SetCacheAhead sets the number of frames prefetched after a miss.
func (c *Cache) SetCacheAhead(frames int) error {
	if frames < 0 {
		return fmt.Errorf("%w: ahead %d", ErrInvalidFrameCount, frames)
	}
	c.mu.Lock()
	c.policy.Ahead = frames
	c.mu.Unlock()
	return nil
}

// CacheAhead returns the look-ahead frame count.
func (c *Cache) CacheAhead() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.Ahead
}

// SetCacheBehind sets the number of frames prefetched before a miss.
func (c *Cache) SetCacheBehind(frames int) error {
	if frames < 0 {
		return fmt.Errorf("%w: behind %d", ErrInvalidFrameCount, frames)
	}
	c.mu.Lock()
	c.policy.Behind = frames
	c.mu.Unlock()
	return nil
}

// CacheBehind returns the look-behind frame count.
func (c *Cache) CacheBehind() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.Behind
}

// SetFrameRate sets the assumed frame rate used to space prefetched frames.
func (c *Cache) SetFrameRate(fps float64) error {
	if fps <= 0 {
		return fmt.Errorf("%w: %g fps", ErrInvalidFrameRate, fps)
	}
	c.mu.Lock()
	c.policy.FrameRate = fps
	c.mu.Unlock()
	return nil
}

// FrameRate returns the assumed frame rate.
func (c *Cache) FrameRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.FrameRate
}

// SetRetryAfter changes how long failed frames are left alone.
func (c *Cache) SetRetryAfter(d time.Duration) {
	c.mu.Lock()
	c.retryAfter = d
	c.mu.Unlock()
}

// SizeBytes returns the total byte cost of cached frames.
func (c *Cache) SizeBytes() int64 {
	return c.store.Cost()
}

// SizeMB returns the total cost of cached frames in megabytes.
func (c *Cache) SizeMB() float64 {
	return float64(c.store.Cost()) / bytesPerMB
}

// HitCount returns the number of hits since the last reset.
func (c *Cache) HitCount() uint64 {
	return c.stats.hits.Load()
}

// MissCount returns the number of misses since the last reset.
func (c *Cache) MissCount() uint64 {
	return c.stats.misses.Load()
}

// ResetStatistics zeroes all counters.
func (c *Cache) ResetStatistics() {
	c.stats.reset()
	c.store.resetEvictions()
}

// Stats returns a snapshot of counters and occupancy.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.stats.hits.Load(),
		Misses:        c.stats.misses.Load(),
		Loads:         c.stats.loads.Load(),
		LoadErrors:    c.stats.loadErrors.Load(),
		StaleDiscards: c.stats.staleDiscards.Load(),
		Evictions:     c.store.Evictions(),
		Entries:       c.store.Len(),
		SizeBytes:     c.store.Cost(),
		MaxBytes:      c.store.MaxCost(),
		Queued:        c.loader.QueueLen(),
	}
}

// Pending returns the requests waiting for the loader, in service order.
func (c *Cache) Pending() []Request {
	return c.loader.Queued()
}

// LoaderState returns the state of the background loader.
func (c *Cache) LoaderState() LoaderState {
	return c.loader.State()
}

// OnFrameAvailable registers fn to run, on the loader goroutine, whenever
// a decoded frame has been inserted. The returned func unregisters it.
func (c *Cache) OnFrameAvailable(fn func(FrameEvent)) func() {
	return c.events.onFrame(fn)
}

// OnCacheError registers fn to run, on the loader goroutine, whenever a
// frame could not be loaded. The returned func unregisters it.
func (c *Cache) OnCacheError(fn func(ErrorEvent)) func() {
	return c.events.onError(fn)
}

// Close stops the loader and waits for it to exit. Cached frames stay
// readable; nothing new is scheduled afterwards.
func (c *Cache) Close() error {
	c.loader.Stop()
	return nil
}

// schedule queues key unless it failed recently.
func (c *Cache) schedule(key Key) bool {
	if c.recentlyFailed(key) {
		return false
	}
	queued, err := c.loader.Request(Request{Key: key, Epoch: c.epoch.Load()})
	if err != nil {
		c.logger.Debug("Not scheduling frame at %dms from %s: %s", key.TimestampMs, key.Source, err.Error())
		return false
	}
	return queued
}

func (c *Cache) recentlyFailed(key Key) bool {
	return c.recentFailure(key) != nil
}

// recentFailure returns the error of key's last failed load while its retry
// delay has not passed yet.
func (c *Cache) recentFailure(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.failures[key]
	if !ok {
		return nil
	}
	if c.retryAfter > 0 && c.now().Sub(f.at) >= c.retryAfter {
		delete(c.failures, key)
		return nil
	}
	return f.err
}

// isSettled reports whether a dequeued request became unnecessary while it
// waited: it belongs to a cleared epoch or its frame got cached meanwhile.
func (c *Cache) isSettled(req Request) bool {
	return req.Epoch != c.epoch.Load() || c.store.Contains(req.Key)
}

func (c *Cache) handleResult(res Result) {
	// Costing may call into the decoder's image; keep it outside the lock.
	var frame *Frame
	if res.Err == nil {
		frame = newFrame(res.Key, res.Image)
	}

	c.clearMu.RLock()
	if res.Epoch != c.epoch.Load() {
		c.clearMu.RUnlock()
		c.stats.staleDiscards.Add(1)
		c.logger.Debug("Discarding stale frame at %dms from %s", res.TimestampMs, res.Source)
		return
	}

	err := res.Err
	if err == nil && !c.store.Add(frame) {
		err = ErrFrameTooLarge
	}
	if err != nil {
		c.stats.loadErrors.Add(1)
		c.recordFailure(res.Key, err)
		c.clearMu.RUnlock()
		c.reportError(res.Key, err)
		return
	}
	c.stats.loads.Add(1)
	c.clearMu.RUnlock()

	c.events.emitFrame(FrameEvent{Key: res.Key})
}

func (c *Cache) recordFailure(key Key, err error) {
	c.mu.Lock()
	c.failures[key] = failure{at: c.now(), err: err}
	c.mu.Unlock()
}

func (c *Cache) reportError(key Key, err error) {
	c.logger.Warn("Failed to load frame at %dms from %s: %s", key.TimestampMs, key.Source, err.Error())
	c.events.emitError(ErrorEvent{
		Key:     key,
		Err:     err,
		Message: fmt.Sprintf("Failed to load frame at %dms from %s: %v", key.TimestampMs, key.Source, err),
	})
}
