package buffer

import (
	"os"
	"testing"
)

func TestAppendTakeAllRoundTrip(t *testing.T) {
	b := New()
	b.Append([]byte("hello world"))

	if got := b.TakeAllAsString(); got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
	if b.ReadableLen() != 0 {
		t.Fatalf("expected empty buffer after TakeAllAsString, got %d readable", b.ReadableLen())
	}
}

func TestEnsureWritableCompacts(t *testing.T) {
	b := NewSize(16)
	b.Append([]byte("0123456789"))
	b.AdvanceRead(8) // readPos=8, writePos=10, prependable=8, writable=6

	b.EnsureWritable(10) // 8+6 >= 10 -> compact, not grow
	if b.Cap() != 16 {
		t.Fatalf("expected compaction to avoid growth, cap=%d", b.Cap())
	}
	if b.ReadableLen() != 2 {
		t.Fatalf("expected 2 readable bytes after compaction, got %d", b.ReadableLen())
	}
	if got := string(b.Peek()); got != "89" {
		t.Fatalf("got %q, want %q", got, "89")
	}
}

func TestEnsureWritableGrows(t *testing.T) {
	b := NewSize(4)
	b.Append([]byte("ab"))
	b.EnsureWritable(100)
	if b.WritableLen() < 100 {
		t.Fatalf("expected growth to satisfy request, writable=%d", b.WritableLen())
	}
}

func TestInvariants(t *testing.T) {
	b := New()
	b.Append([]byte("abc"))
	b.AdvanceRead(1)

	if !(0 <= b.readPos && b.readPos <= b.writePos && b.writePos <= b.Cap()) {
		t.Fatalf("invariant violated: readPos=%d writePos=%d cap=%d", b.readPos, b.writePos, b.Cap())
	}
}

func TestReadFromFDScatterOverflow(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	payload := make([]byte, 70000) // exceeds WritableLen of a fresh small buffer
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() {
		w.Write(payload)
		w.Close()
	}()

	b := NewSize(8)
	total := 0
	for total < len(payload) {
		n, err := b.ReadFromFD(int(r.Fd()))
		if err != nil {
			t.Fatalf("ReadFromFD: %v", err)
		}
		if n == 0 {
			break
		}
		total += n
	}

	if total != len(payload) {
		t.Fatalf("got %d bytes, want %d", total, len(payload))
	}
}
