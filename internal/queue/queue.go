// Package queue implements the blocking bounded deque shared by the async
// logger and the worker pool, mirroring BlockDeque<T> from the original
// source's log/blockqueue.h. The growable ring storage is
// github.com/eapache/queue.Queue; this package adds the capacity bound,
// blocking push/pop, and close/flush semantics the ring alone doesn't have.
package queue

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Queue is a bounded, thread-safe deque of any. Zero value is not usable;
// construct with New.
type Queue struct {
	mu       sync.Mutex
	consumer *sync.Cond
	producer *sync.Cond
	ring     *queue.Queue
	capacity int
	closed   bool
}

// New constructs a Queue bounded to capacity items. capacity must be > 0.
func New(capacity int) *Queue {
	if capacity <= 0 {
		panic("queue: capacity must be > 0")
	}
	q := &Queue{ring: queue.New(), capacity: capacity}
	q.consumer = sync.NewCond(&q.mu)
	q.producer = sync.NewCond(&q.mu)
	return q
}

// PushBack blocks while the queue is full, then appends item. Returns false
// if the queue was or became closed while waiting.
func (q *Queue) PushBack(item any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Length() >= q.capacity {
		if q.closed {
			return false
		}
		q.producer.Wait()
		if q.closed {
			return false
		}
	}
	q.ring.Add(item)
	q.consumer.Signal()
	return true
}

// PushFront blocks while full, then prepends item ahead of the rest of the
// queue (the counterpart of the original's push_front). Returns false if
// the queue was or became closed while waiting.
func (q *Queue) PushFront(item any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Length() >= q.capacity {
		if q.closed {
			return false
		}
		q.producer.Wait()
		if q.closed {
			return false
		}
	}
	old := q.ring
	rebuilt := queue.New()
	rebuilt.Add(item)
	for i := 0; i < old.Length(); i++ {
		rebuilt.Add(old.Get(i))
	}
	q.ring = rebuilt
	q.consumer.Signal()
	return true
}

// Pop blocks until an item is available or the queue closes, returning
// (item, true) or (nil, false).
func (q *Queue) Pop() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Length() == 0 {
		if q.closed {
			return nil, false
		}
		q.consumer.Wait()
		if q.closed && q.ring.Length() == 0 {
			return nil, false
		}
	}
	item := q.ring.Peek()
	q.ring.Remove()
	q.producer.Signal()
	return item, true
}

// PopTimeout blocks until an item is available, the queue closes, or
// timeout elapses without a wakeup, in which case it returns (nil, false)
// without removing anything. sync.Cond has no native timeout, so a
// time.AfterFunc broadcasts the consumer condition once the deadline
// passes, waking the Wait below to re-check it.
func (q *Queue) PopTimeout(timeout time.Duration) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for q.ring.Length() == 0 {
		if q.closed {
			return nil, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.consumer.Broadcast()
			q.mu.Unlock()
		})
		q.consumer.Wait()
		timer.Stop()
		if q.closed && q.ring.Length() == 0 {
			return nil, false
		}
	}
	item := q.ring.Peek()
	q.ring.Remove()
	q.producer.Signal()
	return item, true
}

func (q *Queue) Front() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Length() == 0 {
		return nil, false
	}
	return q.ring.Peek(), true
}

func (q *Queue) Back() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.ring.Length()
	if n == 0 {
		return nil, false
	}
	return q.ring.Get(n - 1), true
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

func (q *Queue) Capacity() int { return q.capacity }

func (q *Queue) Empty() bool { return q.Size() == 0 }

func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length() >= q.capacity
}

// Flush wakes one blocked consumer, nudging a single writer task to drain
// whatever remains (matches BlockDeque::flush).
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumer.Signal()
}

// Close empties the queue, marks it closed, and wakes every blocked
// producer and consumer; each must re-check the closed flag on wake.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ring = queue.New()
	q.closed = true
	q.producer.Broadcast()
	q.consumer.Broadcast()
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
