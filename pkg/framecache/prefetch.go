package framecache

// DefaultFrameRate is the frame rate assumed when converting frame counts
// into timestamp offsets.
const DefaultFrameRate = 30.0

// maxRangeHint caps the capacity Range preallocates.
const maxRangeHint = 4096

// PrefetchPolicy decides which neighbouring frames are scheduled alongside
// a requested one.
type PrefetchPolicy struct {
	Ahead     int     // Frames scheduled after the requested timestamp
	Behind    int     // Frames scheduled before the requested timestamp
	FrameRate float64 // Assumed frames per second
}

// DefaultPrefetchPolicy returns one second of look-ahead and look-behind at 30 fps.
func DefaultPrefetchPolicy() PrefetchPolicy {
	return PrefetchPolicy{
		Ahead:     30,
		Behind:    30,
		FrameRate: DefaultFrameRate,
	}
}

// Interval returns the frame interval in whole milliseconds (33 at 30 fps).
func (p PrefetchPolicy) Interval() int64 {
	fps := p.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	interval := int64(1000 / fps)
	if interval < 1 {
		interval = 1
	}
	return interval
}

// Window returns the prefetch candidates around t: the look-ahead frames
// nearest first, then the look-behind frames nearest first. Look-behind
// candidates before the start of the source are dropped.
func (p PrefetchPolicy) Window(t int64) []int64 {
	interval := p.Interval()
	out := make([]int64, 0, max(p.Ahead, 0)+max(p.Behind, 0))
	for i := 1; i <= p.Ahead; i++ {
		ts := t + int64(i)*interval
		if ts < t {
			break
		}
		out = append(out, ts)
	}
	for i := 1; i <= p.Behind; i++ {
		ts := t - int64(i)*interval
		if ts < 0 {
			break
		}
		out = append(out, ts)
	}
	return out
}

// Range returns start, start+interval, ... up to and including end.
func (p PrefetchPolicy) Range(start, end int64) []int64 {
	if end < start {
		return nil
	}
	interval := p.Interval()
	// end-start may exceed MaxInt64; as uint64 it cannot.
	n := uint64(end-start)/uint64(interval) + 1
	out := make([]int64, 0, min(n, maxRangeHint))
	for ts := start; ; ts += interval {
		out = append(out, ts)
		if uint64(end-ts) < uint64(interval) {
			break
		}
	}
	return out
}
