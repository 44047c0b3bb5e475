// Package reactor implements the accept loop, event dispatch, and timer
// tick of spec.md §4.11, grounded on server/engine/epoll.go's
// StartEpoll/listenSocket (accept loop shape, EPOLLONESHOT re-arm,
// worker-queue dispatch) and generalized per spec.md from "read then
// hardcoded 200 OK" to the full read/process/write cycle, plus
// original_source/code/server/webserver.h's DealListen MAX_FD gate and
// SO_REUSEADDR/SO_LINGER listener setup.
package reactor

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/s00inx/reactorhttpd/internal/applog"
	"github.com/s00inx/reactorhttpd/internal/httpserver"
	"github.com/s00inx/reactorhttpd/internal/poller"
	"github.com/s00inx/reactorhttpd/internal/timerwheel"
	"github.com/s00inx/reactorhttpd/internal/workerpool"
)

// MaxFD is the busy-response ceiling of spec.md §4.11's DealListen.
const MaxFD = 65536

const maxEvents = 1024

// Config bundles the listener/runtime parameters the reactor needs,
// separate from the CLI flag surface in internal/config.
type Config struct {
	Port          int
	TriggerMode   int // bit 0: connections ET; bit 1: listener ET
	GracefulClose bool
	TimeoutMS     int
	SrcDir        string
	Workers       int
	WorkerQueue   int
	Verify        func(user, pwd string, isLogin bool) bool
}

// Reactor ties the poller, timer wheel, and worker pool into the single
// main-loop thread described in spec.md §5. The listener and new
// connections are registered on that thread; worker jobs re-arm
// (Modify) and deregister (Remove) their connection directly.
type Reactor struct {
	cfg      Config
	log      *applog.Logger
	poll     *poller.Poller
	timers   *timerwheel.Wheel
	workers  *workerpool.Pool
	listenFd int

	wakeR int
	wakeW int

	mu    sync.Mutex
	conns map[int]*httpserver.Conn

	stopped bool
}

// New constructs a Reactor but does not start listening; call Run.
func New(cfg Config, log *applog.Logger) (*Reactor, error) {
	p, err := poller.New()
	if err != nil {
		return nil, fmt.Errorf("reactor: poller init: %w", err)
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		p.Close()
		return nil, fmt.Errorf("reactor: wake pipe: %w", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		p.Close()
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, fmt.Errorf("reactor: wake pipe nonblock: %w", err)
	}

	r := &Reactor{
		cfg:    cfg,
		log:    log,
		poll:   p,
		timers: timerwheel.New(),
		conns:  make(map[int]*httpserver.Conn),
		wakeR:  fds[0],
		wakeW:  fds[1],
	}
	if err := r.poll.Add(r.wakeR, poller.Read); err != nil {
		p.Close()
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, fmt.Errorf("reactor: poller add wake pipe: %w", err)
	}
	r.workers = workerpool.New(cfg.Workers, cfg.WorkerQueue)
	httpserver.EdgeTriggered.Store(cfg.TriggerMode&1 != 0)
	return r, nil
}

func (r *Reactor) listenerEdgeTriggered() bool { return r.cfg.TriggerMode&2 != 0 }

// listen opens the listening socket per webserver.h: SO_REUSEADDR, optional
// SO_LINGER, bind, listen, non-blocking, registered with the poller.
func (r *Reactor) listen() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("reactor: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: SO_REUSEADDR: %w", err)
	}
	if r.cfg.GracefulClose {
		linger := unix.Linger{Onoff: 1, Linger: 1}
		unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &linger)
	}

	addr := &unix.SockaddrInet4{Port: r.cfg.Port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: bind: %w", err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: set nonblock: %w", err)
	}

	mask := poller.Read
	if r.listenerEdgeTriggered() {
		mask |= poller.Edge
	}
	if err := r.poll.Add(fd, mask); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: poller add listener: %w", err)
	}

	r.listenFd = fd
	return nil
}

// connEventMask returns the per-connection interest mask for the given
// direction, combined with ONESHOT, PEER-HUP, and ET per the trigger mode.
func (r *Reactor) connEventMask(write bool) poller.Mask {
	mask := poller.Read
	if write {
		mask = poller.Write
	}
	mask |= poller.OneShot | poller.PeerHup
	if r.cfg.TriggerMode&1 != 0 {
		mask |= poller.Edge
	}
	return mask
}

// Run executes the main loop until Stop is called. It blocks the calling
// goroutine, which becomes the single reactor thread spec.md §5 mandates.
func (r *Reactor) Run() error {
	if err := r.listen(); err != nil {
		return err
	}
	defer r.poll.Close()
	defer unix.Close(r.listenFd)
	defer unix.Close(r.wakeR)
	defer unix.Close(r.wakeW)

	raw := make([]unix.EpollEvent, maxEvents)
	for {
		r.mu.Lock()
		stopped := r.stopped
		r.mu.Unlock()
		if stopped {
			return nil
		}

		timeout := r.timers.NextTickMS()
		events, err := r.poll.Wait(raw, timeout)
		if err != nil {
			r.log.Errorf("reactor: poll wait: %v", err)
			continue
		}

		for _, ev := range events {
			r.dispatch(ev)
		}
		r.timers.Tick()
	}
}

func (r *Reactor) dispatch(ev poller.Event) {
	if ev.FD == r.wakeR {
		r.drainWake()
		return
	}
	if ev.FD == r.listenFd {
		r.dealListen()
		return
	}

	r.mu.Lock()
	c, ok := r.conns[ev.FD]
	r.mu.Unlock()
	if !ok {
		return
	}

	if ev.Mask&poller.ErrOrHup != 0 {
		r.closeConn(c)
		return
	}
	if ev.Mask&poller.Read != 0 {
		r.workers.Submit(ev.FD, func(int) { r.onRead(c) })
		return
	}
	if ev.Mask&poller.Write != 0 {
		r.workers.Submit(ev.FD, func(int) { r.onWrite(c) })
	}
}

// dealListen accepts connections until EAGAIN or MaxFD, per
// original_source/code/server/webserver.h's DealListen.
func (r *Reactor) dealListen() {
	for {
		nfd, sa, err := unix.Accept(r.listenFd)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			r.log.Errorf("reactor: accept: %v", err)
			return
		}

		if httpserver.ActiveConns.Load() >= MaxFD {
			unix.Write(nfd, []byte("Server busy!"))
			unix.Close(nfd)
			r.log.Warnf("reactor: refused connection, active >= MaxFD")
			return
		}

		unix.SetNonblock(nfd, true)
		peer := peerString(sa)

		c := httpserver.NewConn(nfd, peer, r.cfg.SrcDir, r.cfg.Verify)
		r.mu.Lock()
		r.conns[nfd] = c
		r.mu.Unlock()

		r.timers.Add(nfd, time.Duration(r.cfg.TimeoutMS)*time.Millisecond, func(id int) {
			r.mu.Lock()
			cc, ok := r.conns[id]
			r.mu.Unlock()
			if ok {
				r.closeConn(cc)
			}
		})

		if err := r.poll.Add(nfd, r.connEventMask(false)); err != nil {
			r.log.Errorf("reactor: poller add conn: %v", err)
			r.closeConn(c)
		}
	}
}

// drainWake empties the self-pipe Stop wrote to; the byte itself carries no
// meaning, its only purpose is unblocking epoll_wait.
func (r *Reactor) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	default:
		return "unknown"
	}
}

// onRead implements OnRead: read, then always invoke onProcess, matching
// spec.md §4.11 ("re-running the parser is handled inside OnProcess").
func (r *Reactor) onRead(c *httpserver.Conn) {
	_, err := c.ReadFd()
	if err != nil {
		r.closeConn(c)
		return
	}
	r.bumpTimer(c.Fd)
	r.onProcess(c)
}

// onProcess implements OnProcess: re-arm for WRITE on a complete parse,
// else re-arm for READ.
func (r *Reactor) onProcess(c *httpserver.Conn) {
	if c.Process() {
		r.rearm(c.Fd, r.connEventMask(true))
	} else {
		r.rearm(c.Fd, r.connEventMask(false))
	}
}

// onWrite implements OnWrite per spec.md §4.11's drain/keep-alive/close
// decision table.
func (r *Reactor) onWrite(c *httpserver.Conn) {
	_, err := c.WriteFd()
	r.bumpTimer(c.Fd)

	if err == nil && c.ToWriteBytes() == 0 {
		if c.Resp != nil && c.Resp.KeepAlive {
			c.Resp.Close()
			r.rearm(c.Fd, r.connEventMask(false))
			return
		}
		r.closeConn(c)
		return
	}
	if err == unix.EAGAIN {
		r.rearm(c.Fd, r.connEventMask(true))
		return
	}
	r.closeConn(c)
}

func (r *Reactor) bumpTimer(fd int) {
	r.timers.Adjust(fd, time.Duration(r.cfg.TimeoutMS)*time.Millisecond)
}

func (r *Reactor) rearm(fd int, mask poller.Mask) {
	if err := r.poll.Modify(fd, mask); err != nil {
		r.mu.Lock()
		c := r.conns[fd]
		r.mu.Unlock()
		if c != nil {
			r.closeConn(c)
		}
	}
}

func (r *Reactor) closeConn(c *httpserver.Conn) {
	if c == nil || c.Closed() {
		return
	}
	r.mu.Lock()
	delete(r.conns, c.Fd)
	r.mu.Unlock()
	r.timers.Del(c.Fd)
	r.poll.Remove(c.Fd)
	c.Close()
}

// Stop signals the main loop to exit after its current wait and wakes it
// immediately via the self-pipe, even when the timer wheel is empty and
// epoll_wait would otherwise block forever. The DB pool and log are owned
// by the caller, which should close them after Run returns.
func (r *Reactor) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	unix.Write(r.wakeW, []byte{0})
	r.workers.Stop()
}
