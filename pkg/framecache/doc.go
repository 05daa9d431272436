// Package framecache implements a bounded, cost-weighted cache of decoded
// video frames with asynchronous prefetching.
//
// Frames are keyed by (source, timestamp). A lookup never blocks on
// decoding: a miss returns immediately and schedules the frame, plus a
// window of neighbouring frames, onto a single background loader. Decoded
// frames are inserted into an LRU store whose budget is measured in bytes.
//
// Lifecycle: New() -> GetFrame()/PrefetchRange()/Insert() -> Close().
// Notifications (frame available, cache error) are delivered on the loader
// goroutine; listeners must not block for long.
package framecache
