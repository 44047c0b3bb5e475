package queue

import (
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	q := New(4)
	q.PushBack(1)
	q.PushBack(2)
	q.PushBack(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Pop()
		if !ok || got.(int) != want {
			t.Fatalf("got (%v,%v), want (%d,true)", got, ok, want)
		}
	}
}

func TestPushFrontPriority(t *testing.T) {
	q := New(4)
	q.PushBack(2)
	q.PushBack(3)
	q.PushFront(1)

	got, _ := q.Pop()
	if got.(int) != 1 {
		t.Fatalf("got %v, want 1 at front", got)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	q := New(2)
	q.PushBack(1)
	q.PushBack(2)

	done := make(chan struct{})
	go func() {
		q.PushBack(3) // should block until space frees
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("PushBack returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	if q.Size() > q.Capacity() {
		t.Fatalf("queue exceeded capacity: size=%d cap=%d", q.Size(), q.Capacity())
	}

	q.Pop()
	<-done
}

func TestPopTimeoutReturnsFalseWithoutRemoving(t *testing.T) {
	q := New(4)
	start := time.Now()
	_, ok := q.PopTimeout(30 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got an item")
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("PopTimeout returned too early")
	}
	if q.Size() != 0 {
		t.Fatalf("expected no elements removed, size=%d", q.Size())
	}
}

func TestCloseWakesBlockedPop(t *testing.T) {
	q := New(1) // empty: Pop blocks
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Pop to fail after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Close")
	}
	if !q.Closed() {
		t.Fatal("expected Closed() to report true")
	}
}

func TestCloseWakesBlockedPush(t *testing.T) {
	q := New(1)
	q.PushBack("x") // fill it so the next push blocks

	done := make(chan bool, 1)
	go func() {
		ok := q.PushBack("y")
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected PushBack to fail after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("PushBack did not wake up after Close")
	}
}
