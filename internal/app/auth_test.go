package app

import "testing"

func TestVerifyNilPoolPanics(t *testing.T) {
	a := New(nil, nil)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic acquiring from a nil pool, documenting that Auth requires a live pool")
		}
	}()
	a.Verify("alice", "secret", true)
}
