// Package poller wraps Linux epoll(7) behind the descriptor/interest-mask
// vocabulary used by the reactor: add, modify, remove, wait.
package poller

import (
	"golang.org/x/sys/unix"
)

// Mask is a readiness interest mask; values combine with bitwise OR.
type Mask uint32

const (
	Read  Mask = unix.EPOLLIN
	Write Mask = unix.EPOLLOUT
	Edge  Mask = unix.EPOLLET
	// PeerHup detects a half-closed peer (EPOLLRDHUP).
	PeerHup Mask = unix.EPOLLRDHUP
	OneShot Mask = unix.EPOLLONESHOT
	errMask Mask = unix.EPOLLERR
	hupMask Mask = unix.EPOLLHUP
)

// Has reports whether got contains every bit of want.
func (m Mask) Has(want Mask) bool { return m&want == want }

// HasAny reports whether got shares any bit with want.
func (m Mask) HasAny(want Mask) bool { return m&want != 0 }

// ErrOrHup is the combination the reactor treats as "tear the connection
// down" regardless of what else is set.
const ErrOrHup = errMask | hupMask | PeerHup

// Event is one readiness notification.
type Event struct {
	FD   int
	Mask Mask
}

// Poller is a thin epoll(7) wrapper. Add is called from the reactor's
// single owning goroutine (see package reactor); Modify and Remove are also
// called by worker goroutines re-arming or closing a connection. Poller
// holds no lock of its own: every method goes straight to epoll_ctl(2).
type Poller struct {
	epfd int
}

// New creates a new epoll instance.
func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: fd}, nil
}

func (p *Poller) Add(fd int, mask Mask) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: uint32(mask),
		Fd:     int32(fd),
	})
}

func (p *Poller) Modify(fd int, mask Mask) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: uint32(mask),
		Fd:     int32(fd),
	})
}

// Remove explicitly deregisters fd. Per spec.md §9, implementations should
// call this rather than relying on close(fd) to implicitly deregister, to
// avoid races with fd reuse between close and epoll noticing.
func (p *Poller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeoutMS milliseconds (negative blocks forever,
// zero returns immediately) and returns the ready events in the order
// epoll_wait reported them.
func (p *Poller) Wait(events []unix.EpollEvent, timeoutMS int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = Event{FD: int(events[i].Fd), Mask: Mask(events[i].Events)}
	}
	return out, nil
}

func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
