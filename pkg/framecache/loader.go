package framecache

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/user/framecache/pkg/ports"
)

// LoaderState is the lifecycle state of the background loader.
type LoaderState int

const (
	// StateIdle means no request is being decoded.
	StateIdle LoaderState = iota
	// StateRunning means the worker is dequeuing and decoding.
	StateRunning
	// StateStopping means Stop was called and the worker has not exited yet.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

// String returns the string representation of the state.
func (s LoaderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Result is the outcome of one decode. Exactly one of Image and Err is set.
type Result struct {
	Request
	Image image.Image
	Err   error
}

// ResultHandler receives decode results on the worker goroutine.
type ResultHandler func(Result)

// SkipFunc reports whether a dequeued request no longer needs decoding.
type SkipFunc func(Request) bool

// Loader decodes requests one at a time on a single worker goroutine.
//
// The worker is started by the first Request and parks on a condition
// variable whenever the queue runs dry. No lock is held while the decoder
// runs. Stop cancels the decode in progress and waits for the worker to
// exit, so no decode runs after Stop returns.
type Loader struct {
	decoder ports.FrameDecoder
	handle  ResultHandler
	skip    SkipFunc
	logger  ports.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *loadQueue
	state   LoaderState
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoader creates an idle loader. skip may be nil.
func NewLoader(decoder ports.FrameDecoder, logger ports.Logger, handle ResultHandler, skip SkipFunc) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		decoder: decoder,
		handle:  handle,
		skip:    skip,
		logger:  logger,
		queue:   newLoadQueue(),
		state:   StateIdle,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Request enqueues req unless its key is already pending. It never blocks
// on decoding. The returned bool reports whether req was queued.
func (l *Loader) Request(req Request) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateStopping || l.state == StateStopped {
		return false, ErrLoaderStopped
	}
	if !l.queue.push(req) {
		return false, nil
	}

	if !l.started {
		l.started = true
		go l.run()
	}
	l.state = StateRunning
	l.cond.Signal()
	return true, nil
}

// Forget drops a queued request for key. A decode already in flight still completes.
func (l *Loader) Forget(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.remove(key)
}

// Drain drops every queued request and returns how many were dropped.
func (l *Loader) Drain() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.clear()
}

// Pending reports whether key is queued or being decoded.
func (l *Loader) Pending(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.contains(key)
}

// QueueLen returns the number of queued requests, excluding the one in flight.
func (l *Loader) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.len()
}

// Queued returns the queued requests in the order they will be serviced.
func (l *Loader) Queued() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.snapshot()
}

// State returns the current lifecycle state.
func (l *Loader) State() LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stop clears pending requests, aborts the decode in progress and blocks
// until the worker has exited. Safe to call more than once.
func (l *Loader) Stop() {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return
	}
	l.queue.clear()
	l.cancel()
	if !l.started {
		l.state = StateStopped
		l.mu.Unlock()
		return
	}
	l.state = StateStopping
	l.cond.Broadcast()
	l.mu.Unlock()

	<-l.done
}

func (l *Loader) run() {
	defer close(l.done)

	for {
		req, ok := l.next()
		if !ok {
			return
		}
		l.process(req)
	}
}

// next blocks until a request is available or the loader is stopping.
func (l *Loader) next() (Request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if l.state == StateStopping {
			l.state = StateStopped
			return Request{}, false
		}
		req, ok := l.queue.pop()
		if !ok {
			l.state = StateIdle
			l.cond.Wait()
			continue
		}
		if l.skip != nil && l.skip(req) {
			l.queue.done()
			continue
		}
		l.state = StateRunning
		return req, true
	}
}

func (l *Loader) process(req Request) {
	l.logger.Debug("Decoding frame at %dms from %s", req.TimestampMs, req.Source)

	img, err := l.decode(req)
	if err == nil && img == nil {
		err = ErrEmptyFrame
	}

	l.mu.Lock()
	stopping := l.state == StateStopping
	l.mu.Unlock()

	if !stopping {
		l.handle(Result{Request: req, Image: img, Err: err})
	}

	l.mu.Lock()
	l.queue.done()
	l.mu.Unlock()
}

func (l *Loader) decode(req Request) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("%w: %v", ErrDecoderPanic, r)
		}
	}()
	return l.decoder.DecodeFrame(l.ctx, req.Source, req.TimestampMs)
}
