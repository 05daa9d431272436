package framecache

import "container/list"

// loadQueue is the FIFO of pending decode requests.
//
// A key is never queued twice, and a key that is being decoded counts as
// pending for requests of the same epoch. It is not safe for concurrent use;
// Loader guards it with its own mutex.
type loadQueue struct {
	order    *list.List
	queued   map[Key]*list.Element
	inflight *Request
}

func newLoadQueue() *loadQueue {
	return &loadQueue{
		order:  list.New(),
		queued: make(map[Key]*list.Element),
	}
}

// push appends req unless its key is already pending.
func (q *loadQueue) push(req Request) bool {
	if _, ok := q.queued[req.Key]; ok {
		return false
	}
	if q.inflight != nil && q.inflight.Key == req.Key && q.inflight.Epoch == req.Epoch {
		return false
	}
	q.queued[req.Key] = q.order.PushBack(req)
	return true
}

// pop removes the oldest request and marks it in flight.
func (q *loadQueue) pop() (Request, bool) {
	e := q.order.Front()
	if e == nil {
		return Request{}, false
	}
	req := q.order.Remove(e).(Request)
	delete(q.queued, req.Key)
	q.inflight = &req
	return req, true
}

// done clears the in-flight marker.
func (q *loadQueue) done() {
	q.inflight = nil
}

// remove drops a queued request for key. In-flight work is unaffected.
func (q *loadQueue) remove(key Key) bool {
	e, ok := q.queued[key]
	if !ok {
		return false
	}
	q.order.Remove(e)
	delete(q.queued, key)
	return true
}

// clear drops every queued request and returns how many were dropped.
func (q *loadQueue) clear() int {
	n := q.order.Len()
	q.order.Init()
	q.queued = make(map[Key]*list.Element)
	return n
}

func (q *loadQueue) len() int {
	return q.order.Len()
}

func (q *loadQueue) contains(key Key) bool {
	if _, ok := q.queued[key]; ok {
		return true
	}
	return q.inflight != nil && q.inflight.Key == key
}

// snapshot returns the queued requests in service order.
func (q *loadQueue) snapshot() []Request {
	out := make([]Request, 0, q.order.Len())
	for e := q.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Request))
	}
	return out
}
