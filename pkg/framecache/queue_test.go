package framecache

import "testing"

func TestLoadQueue_DeduplicatesQueuedKeys(t *testing.T) {
	q := newLoadQueue()

	if !q.push(Request{Key: NewKey("a", 0)}) {
		t.Fatal("expected first push to be accepted")
	}
	if q.push(Request{Key: NewKey("a", 0)}) {
		t.Error("expected duplicate push to be rejected")
	}
	if q.push(Request{Key: NewKey("a", 0), Epoch: 1}) {
		t.Error("a queued key is pending regardless of epoch")
	}
	if q.len() != 1 {
		t.Errorf("expected 1 queued request, got %d", q.len())
	}
}

func TestLoadQueue_InflightCountsAsPending(t *testing.T) {
	q := newLoadQueue()
	q.push(Request{Key: NewKey("a", 0)})

	req, ok := q.pop()
	if !ok || req.Key != NewKey("a", 0) {
		t.Fatalf("unexpected pop result: %v %v", req, ok)
	}
	if !q.contains(NewKey("a", 0)) {
		t.Error("in-flight key should be reported as pending")
	}
	if q.push(Request{Key: NewKey("a", 0)}) {
		t.Error("expected push of in-flight key with same epoch to be rejected")
	}
	if !q.push(Request{Key: NewKey("a", 0), Epoch: 1}) {
		t.Error("expected push of in-flight key from a newer epoch to be accepted")
	}

	q.done()
	if !q.push(Request{Key: NewKey("b", 0)}) {
		t.Error("expected push after done to be accepted")
	}
}

func TestLoadQueue_FIFOOrder(t *testing.T) {
	q := newLoadQueue()
	for _, ts := range []int64{300, 100, 200} {
		q.push(Request{Key: NewKey("clip", ts)})
	}

	var got []int64
	for {
		req, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, req.TimestampMs)
		q.done()
	}

	want := []int64{300, 100, 200}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestLoadQueue_RemoveAndClear(t *testing.T) {
	q := newLoadQueue()
	q.push(Request{Key: NewKey("a", 0)})
	q.push(Request{Key: NewKey("b", 0)})
	q.push(Request{Key: NewKey("c", 0)})

	if !q.remove(NewKey("b", 0)) {
		t.Error("expected remove to report the queued key")
	}
	if q.remove(NewKey("b", 0)) {
		t.Error("expected second remove to report nothing")
	}

	snap := q.snapshot()
	if len(snap) != 2 || snap[0].Source != "a" || snap[1].Source != "c" {
		t.Errorf("unexpected snapshot: %v", snap)
	}

	if n := q.clear(); n != 2 {
		t.Errorf("expected 2 dropped requests, got %d", n)
	}
	if q.len() != 0 || q.contains(NewKey("a", 0)) {
		t.Error("expected empty queue after clear")
	}
	if !q.push(Request{Key: NewKey("a", 0)}) {
		t.Error("expected cleared key to be accepted again")
	}
}
