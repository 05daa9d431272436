package framecache

import "fmt"

// Key identifies a decoded frame: the source it came from and its timestamp
// in milliseconds since the start of the source.
type Key struct {
	Source      string
	TimestampMs int64
}

// NewKey creates a Key.
func NewKey(source string, timestampMs int64) Key {
	return Key{Source: source, TimestampMs: timestampMs}
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%dms", k.Source, k.TimestampMs)
}

// Request is a pending decode of Key, tagged with the cache epoch it was
// issued in. Completions from an older epoch are discarded.
type Request struct {
	Key
	Epoch uint64
}
