package framecache

import "sync"

// FrameEvent announces that a previously missed frame is now cached.
type FrameEvent struct {
	Key
}

// ErrorEvent reports a frame that could not be loaded.
type ErrorEvent struct {
	Key
	Err     error
	Message string // Human-readable description
}

// notifier fans events out to registered listeners.
type notifier struct {
	mu     sync.RWMutex
	nextID int
	frames map[int]func(FrameEvent)
	errs   map[int]func(ErrorEvent)
}

func newNotifier() *notifier {
	return &notifier{
		frames: make(map[int]func(FrameEvent)),
		errs:   make(map[int]func(ErrorEvent)),
	}
}

func (n *notifier) onFrame(fn func(FrameEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.frames[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.frames, id)
		n.mu.Unlock()
	}
}

func (n *notifier) onError(fn func(ErrorEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.errs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.errs, id)
		n.mu.Unlock()
	}
}

// Listeners run without the lock held so they may unsubscribe themselves.
func (n *notifier) emitFrame(ev FrameEvent) {
	n.mu.RLock()
	fns := make([]func(FrameEvent), 0, len(n.frames))
	for _, fn := range n.frames {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (n *notifier) emitError(ev ErrorEvent) {
	n.mu.RLock()
	fns := make([]func(ErrorEvent), 0, len(n.errs))
	for _, fn := range n.errs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
