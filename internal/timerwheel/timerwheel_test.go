package timerwheel

import (
	"sync"
	"testing"
	"time"
)

func TestAddTickFiresOnceAndRemoves(t *testing.T) {
	fixedNow := time.Now()
	w := New()
	w.now = func() time.Time { return fixedNow }

	var mu sync.Mutex
	calls := 0
	w.Add(7, 100*time.Millisecond, func(id int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	fixedNow = fixedNow.Add(101 * time.Millisecond)
	w.now = func() time.Time { return fixedNow }
	w.Tick()

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Fatalf("callback fired %d times, want 1", got)
	}
	if w.Len() != 0 {
		t.Fatalf("node still present after tick, len=%d", w.Len())
	}
}

func TestHeapOrderAndIndexInvariant(t *testing.T) {
	w := New()
	w.Add(1, 300*time.Millisecond, nil)
	w.Add(2, 100*time.Millisecond, nil)
	w.Add(3, 200*time.Millisecond, nil)

	for id, i := range w.index {
		if w.heap[i].id != id {
			t.Fatalf("index map out of sync: index[%d]=%d but heap[%d].id=%d", id, i, i, w.heap[i].id)
		}
	}
	if w.heap[0].id != 2 {
		t.Fatalf("min-heap root should be the earliest deadline (id=2), got id=%d", w.heap[0].id)
	}
}

func TestAdjustReordersHeap(t *testing.T) {
	w := New()
	w.Add(1, 100*time.Millisecond, nil)
	w.Add(2, 200*time.Millisecond, nil)

	w.Adjust(1, 300*time.Millisecond)
	if w.heap[0].id != 2 {
		t.Fatalf("after extending id 1's deadline, id 2 should be at heap root, got id=%d", w.heap[0].id)
	}
}

func TestNextTickMSEmptyIsNegativeOne(t *testing.T) {
	w := New()
	if got := w.NextTickMS(); got != -1 {
		t.Fatalf("got %d, want -1 for empty wheel", got)
	}
}

func TestDoWorkInvokesAndRemoves(t *testing.T) {
	w := New()
	called := false
	w.Add(5, time.Hour, func(id int) { called = true })
	w.DoWork(5)
	if !called {
		t.Fatal("DoWork did not invoke callback")
	}
	if w.Len() != 0 {
		t.Fatalf("node not removed after DoWork, len=%d", w.Len())
	}
}
