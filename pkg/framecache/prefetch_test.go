package framecache

import (
	"math"
	"reflect"
	"testing"
)

func TestPrefetchPolicy_Interval(t *testing.T) {
	tests := []struct {
		fps  float64
		want int64
	}{
		{30, 33},
		{25, 40},
		{60, 16},
		{0, 33},
		{5000, 1},
	}

	for _, tt := range tests {
		p := PrefetchPolicy{FrameRate: tt.fps}
		if got := p.Interval(); got != tt.want {
			t.Errorf("fps %g: expected interval %d, got %d", tt.fps, tt.want, got)
		}
	}
}

func TestPrefetchPolicy_Window(t *testing.T) {
	p := PrefetchPolicy{Ahead: 2, Behind: 1, FrameRate: 30}

	got := p.Window(1000)
	want := []int64{1033, 1066, 967}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPrefetchPolicy_WindowDropsNegativeTimestamps(t *testing.T) {
	p := PrefetchPolicy{Ahead: 1, Behind: 3, FrameRate: 30}

	got := p.Window(40)
	want := []int64{73, 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPrefetchPolicy_EmptyWindow(t *testing.T) {
	p := PrefetchPolicy{FrameRate: 30}
	if got := p.Window(1000); len(got) != 0 {
		t.Errorf("expected empty window, got %v", got)
	}
}

func TestPrefetchPolicy_Range(t *testing.T) {
	p := PrefetchPolicy{FrameRate: 25}

	got := p.Range(0, 100)
	want := []int64{0, 40, 80}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := p.Range(100, 120); !reflect.DeepEqual(got, []int64{100}) {
		t.Errorf("expected single timestamp, got %v", got)
	}
	if got := p.Range(200, 100); got != nil {
		t.Errorf("expected nil for inverted range, got %v", got)
	}
}

func TestPrefetchPolicy_RangeNearMaxTimestamp(t *testing.T) {
	p := PrefetchPolicy{FrameRate: 30}

	got := p.Range(math.MaxInt64-40, math.MaxInt64)
	want := []int64{math.MaxInt64 - 40, math.MaxInt64 - 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := p.Range(math.MaxInt64, math.MaxInt64); !reflect.DeepEqual(got, []int64{math.MaxInt64}) {
		t.Errorf("expected single timestamp, got %v", got)
	}
}

func TestPrefetchPolicy_WindowNearMaxTimestamp(t *testing.T) {
	p := PrefetchPolicy{Ahead: 3, Behind: 1, FrameRate: 30}

	got := p.Window(math.MaxInt64 - 50)
	want := []int64{math.MaxInt64 - 17, math.MaxInt64 - 83}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
