// Package timerwheel implements a min-heap of per-connection deadlines with
// an auxiliary id->index map for O(log n) add/adjust/delete, mirroring
// HeapTimer from the original C++ source.
package timerwheel

import (
	"container/heap"
	"sync"
	"time"
)

// Callback runs when a node's deadline elapses.
type Callback func(id int)

type node struct {
	id      int
	expires time.Time
	cb      Callback
}

// nodeHeap is the min-heap proper, ordered on expires; the owning Wheel's
// index map mirrors each node's position and is kept in sync by trackedHeap.
type nodeHeap []*node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].expires.Before(h[j].expires) }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Wheel is a mutex-guarded min-heap timer: the reactor thread ticks it, and
// workers call Adjust whenever a connection completes I/O, per §5.
type Wheel struct {
	mu    sync.Mutex
	heap  nodeHeap
	index map[int]int // id -> position in heap, kept current on every swap
	now   func() time.Time
}

// New constructs an empty wheel. The now field defaults to time.Now; tests
// may override it to make expiry deterministic.
func New() *Wheel {
	return &Wheel{index: make(map[int]int), now: time.Now}
}

// swap keeps index in sync; wraps nodeHeap.Swap so container/heap's
// internal shuffling never desyncs the auxiliary map.
type trackedHeap struct {
	*nodeHeap
	w *Wheel
}

func (t trackedHeap) Swap(i, j int) {
	t.nodeHeap.Swap(i, j)
	t.w.index[(*t.nodeHeap)[i].id] = i
	t.w.index[(*t.nodeHeap)[j].id] = j
}

func (w *Wheel) th() heap.Interface { return trackedHeap{&w.heap, w} }

// Add registers a timeout for id, replacing any existing node for id (per
// §4.3, an existing id is updated in place rather than duplicated).
func (w *Wheel) Add(id int, timeout time.Duration, cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()

	expires := w.now().Add(timeout)
	if i, ok := w.index[id]; ok {
		w.heap[i].expires = expires
		w.heap[i].cb = cb
		heap.Fix(w.th(), i)
		return
	}

	n := &node{id: id, expires: expires, cb: cb}
	w.index[id] = len(w.heap)
	heap.Push(w.th(), n)
}

// Adjust extends (or, for correctness, shortens) id's deadline. No-op if id
// is absent.
func (w *Wheel) Adjust(id int, timeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i, ok := w.index[id]
	if !ok {
		return
	}
	w.heap[i].expires = w.now().Add(timeout)
	heap.Fix(w.th(), i)
}

// Del removes id's node, if present, without invoking its callback.
func (w *Wheel) Del(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.del(id)
}

func (w *Wheel) del(id int) {
	i, ok := w.index[id]
	if !ok {
		return
	}
	heap.Remove(w.th(), i)
	delete(w.index, id)
}

// DoWork immediately invokes and removes id's node, used when a connection
// closes for a reason other than timeout and its timer must be cancelled.
func (w *Wheel) DoWork(id int) {
	w.mu.Lock()
	n, ok := w.index[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	cb := w.heap[n].cb
	w.del(id)
	w.mu.Unlock()
	if cb != nil {
		cb(id)
	}
}

// Tick pops and invokes every node whose deadline has elapsed.
func (w *Wheel) Tick() {
	for {
		w.mu.Lock()
		if len(w.heap) == 0 || w.heap[0].expires.After(w.now()) {
			w.mu.Unlock()
			return
		}
		n := w.heap[0]
		w.del(n.id)
		w.mu.Unlock()
		if n.cb != nil {
			n.cb(n.id)
		}
	}
}

// NextTickMS returns how long the reactor's poller wait should block: -1 if
// the wheel is empty, else the milliseconds until the next deadline
// (clamped to >= 0).
func (w *Wheel) NextTickMS() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.heap) == 0 {
		return -1
	}
	d := w.heap[0].expires.Sub(w.now())
	if d < 0 {
		d = 0
	}
	return int(d.Milliseconds())
}

// Clear empties the wheel without invoking any callback.
func (w *Wheel) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.heap = nil
	w.index = make(map[int]int)
}

// Len reports the number of live nodes, exposed for invariant checks.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.heap)
}
