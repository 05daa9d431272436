package framecache

import "sync/atomic"

// Stats is a point-in-time snapshot of cache activity.
//
// Counters are monotonic since the last ResetStatistics or Clear.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Loads         uint64 `json:"loads"`          // Successful background decodes inserted
	LoadErrors    uint64 `json:"load_errors"`    // Failed background decodes, oversized frames included
	StaleDiscards uint64 `json:"stale_discards"` // Completions dropped after Clear
	Evictions     uint64 `json:"evictions"`

	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
	Queued    int   `json:"queued"`
}

// HitRatio returns hits / (hits + misses), or 0 when nothing was looked up.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	loads         atomic.Uint64
	loadErrors    atomic.Uint64
	staleDiscards atomic.Uint64
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.loads.Store(0)
	c.loadErrors.Store(0)
	c.staleDiscards.Store(0)
}
