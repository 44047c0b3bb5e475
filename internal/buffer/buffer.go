// Package buffer implements the growable byte container shared by every
// connection's read and write side.
package buffer

import (
	"golang.org/x/sys/unix"
)

// initialCap matches the teacher's default Buffer construction size.
const initialCap = 1024

// overflow is the stack-sized scratch region used by ReadFromFD to drain an
// arbitrarily large edge-triggered batch in a single readv(2).
const overflowSize = 64 * 1024

// Buffer is an owned contiguous byte region with readPos <= writePos <=
// cap(buf). It is not safe for concurrent use; a Buffer is owned by exactly
// one connection's worker at a time.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New returns a Buffer with the teacher's default initial capacity.
func New() *Buffer {
	return &Buffer{buf: make([]byte, initialCap)}
}

// NewSize returns a Buffer with the given initial capacity.
func NewSize(cap int) *Buffer {
	if cap <= 0 {
		cap = initialCap
	}
	return &Buffer{buf: make([]byte, cap)}
}

func (b *Buffer) ReadableLen() int     { return b.writePos - b.readPos }
func (b *Buffer) WritableLen() int     { return len(b.buf) - b.writePos }
func (b *Buffer) PrependableLen() int  { return b.readPos }
func (b *Buffer) Cap() int             { return len(b.buf) }

// Peek returns the readable span without consuming it.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readPos:b.writePos]
}

// BeginWrite returns the writable tail; callers copy into it then call
// AdvanceWrite with the number of bytes written.
func (b *Buffer) BeginWrite() []byte {
	return b.buf[b.writePos:]
}

func (b *Buffer) AdvanceWrite(n int) {
	b.writePos += n
}

// AdvanceRead consumes n bytes from the readable span. Once fully drained,
// both indices reset to zero so prependable space is reclaimed.
func (b *Buffer) AdvanceRead(n int) {
	if n < b.ReadableLen() {
		b.readPos += n
		return
	}
	b.RetrieveAll()
}

// RetrieveUntil advances readPos up to (but not including) ptr, which must
// point inside the readable span.
func (b *Buffer) RetrieveUntil(ptr int) {
	b.AdvanceRead(ptr - b.readPos)
}

// RetrieveAll resets both indices to zero, the "full reset" of §3.
func (b *Buffer) RetrieveAll() {
	b.readPos = 0
	b.writePos = 0
}

// TakeAllAsString retrieves every readable byte as a string and resets the
// buffer.
func (b *Buffer) TakeAllAsString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// Append writes bytes to the writable tail, growing as needed.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	n := copy(b.BeginWrite(), data)
	b.AdvanceWrite(n)
}

// EnsureWritable guarantees at least n writable bytes, compacting in place
// when there's enough combined prependable+writable room, else growing.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableLen() >= n {
		return
	}
	if b.PrependableLen()+b.WritableLen() >= n {
		readable := b.ReadableLen()
		copy(b.buf, b.buf[b.readPos:b.writePos])
		b.readPos = 0
		b.writePos = readable
		return
	}
	grown := make([]byte, b.writePos+n+1)
	copy(grown, b.buf[:b.writePos])
	b.buf = grown
}

// ReadFromFD performs a single scatter read into the writable tail and a
// stack-sized overflow region, so one syscall drains an arbitrarily large
// edge-triggered batch. Returns (-1, err) on failure; callers must
// distinguish EAGAIN from fatal errors.
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	var overflow [overflowSize]byte

	writable := b.WritableLen()
	iov := make([][]byte, 0, 2)
	iov = append(iov, b.BeginWrite())
	iov = append(iov, overflow[:])

	n, err := unix.Readv(fd, iov)
	if err != nil {
		return -1, err
	}
	if n == 0 {
		return 0, nil
	}

	if n <= writable {
		b.AdvanceWrite(n)
	} else {
		b.AdvanceWrite(writable)
		b.Append(overflow[:n-writable])
	}
	return n, nil
}

// WriteToFD drains the readable span to fd with a single write(2), advancing
// readPos by whatever was accepted.
func (b *Buffer) WriteToFD(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if err != nil {
		return -1, err
	}
	b.AdvanceRead(n)
	return n, nil
}
