package httpserver

import (
	"io"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/s00inx/reactorhttpd/internal/buffer"
)

// ActiveConns is the Glossary's "Active-connection counter": an atomic
// integer tracking live Conn instances, shared across every Conn. NewConn
// increments it and Close decrements it.
var ActiveConns atomic.Int64

// EdgeTriggered is set once at startup from the trigger-mode bitmask and
// read by ReadFd/WriteFd's drain-loop decision, mirroring HttpConn::isET.
var EdgeTriggered atomic.Bool

const lingerThreshold = 10 * 1024 // 10 KiB, per spec.md §4.10's write loop

// Conn is the per-connection state of spec.md §3/§4.10: fd, buffers,
// parser/response state, and the gather-write iovec pair, grounded on
// server/engine/session.go's Session layout and
// original_source/code/http/httpconn.h's iovec_[2].
type Conn struct {
	Fd        int
	Peer      string
	closed    bool
	Read      *buffer.Buffer
	Write     *buffer.Buffer
	Req       *Request
	Resp      *Response
	SrcDir    string
	Verify    func(user, pwd string, isLogin bool) bool

	headerView []byte // view into Write's readable span at time of Process
}

// NewConn mirrors HttpConn::init: resets buffers, clears closed, bumps the
// active-connection counter.
func NewConn(fd int, peer, srcDir string, verify func(user, pwd string, isLogin bool) bool) *Conn {
	ActiveConns.Add(1)
	return &Conn{
		Fd:     fd,
		Peer:   peer,
		Read:   buffer.New(),
		Write:  buffer.New(),
		Req:    NewRequest(),
		SrcDir: srcDir,
		Verify: verify,
	}
}

// Closed reports whether Close has already run.
func (c *Conn) Closed() bool { return c.closed }

// ReadFd drains the socket into the read buffer, looping under
// edge-triggered mode (or while unconsumed bytes exceed lingerThreshold)
// per spec.md §4.10/§9; under level-triggered mode a single call suffices.
func (c *Conn) ReadFd() (int, error) {
	total := 0
	for {
		n, err := c.Read.ReadFromFD(c.Fd)
		if n > 0 {
			total += n
		}
		if err != nil {
			if err == unix.EAGAIN {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			// Readv returning 0 with no error is POSIX's peer-closed
			// signal (EOF on a FIN), not "nothing available right now" —
			// the caller must close the connection, per spec.md §4.11's
			// "If result <= 0 and errno != EAGAIN: close."
			return total, io.EOF
		}
		if !EdgeTriggered.Load() && c.Read.ReadableLen() <= lingerThreshold {
			return total, nil
		}
	}
}

// Process runs the parser against the read buffer; on completion it builds
// the response and arms the write view, and on a parse error it builds a
// 400 response with keep-alive off. Returns false if there was nothing to
// parse (read buffer empty) or the request is still incomplete, matching
// HttpConn::process.
func (c *Conn) Process() bool {
	if c.Read.ReadableLen() == 0 {
		return false
	}

	data := c.Read.Peek()
	consumed, done, err := c.Req.Parse(data)
	if consumed > 0 {
		c.Read.AdvanceRead(consumed)
	}
	if !done && err == nil {
		return false
	}

	if err != nil {
		c.Resp = NewResponse(c.SrcDir, "/400.html", false, 400)
	} else {
		if c.Req.PostTag >= 0 && c.Req.Method == "POST" {
			c.applyVerification()
		}
		c.Resp = NewResponse(c.SrcDir, c.Req.Path, c.Req.IsKeepAlive(), 200)
	}

	c.Resp.MakeResponse(c.Write)
	c.headerView = c.Write.Peek()
	c.Req.Init()
	return true
}

// applyVerification dispatches to the injected Verify callback for login
// (tag 1) / register (tag 0) targets, rewriting Path to welcome/error per
// HttpRequest::ParsePost_'s UserVerify dance.
func (c *Conn) applyVerification() {
	if c.Verify == nil {
		return
	}
	user := c.Req.Post["username"]
	pwd := c.Req.Post["password"]
	ok := c.Verify(user, pwd, c.Req.PostTag == TagLogin)
	if ok {
		c.Req.Path = "/welcome.html"
	} else {
		c.Req.Path = "/error.html"
	}
}

// ToWriteBytes reports the combined length still pending across both
// gather-write vectors.
func (c *Conn) ToWriteBytes() int {
	return c.Write.ReadableLen() + c.Resp.Mapped.Len()
}

// WriteFd performs a scatter write of (a) the write buffer's readable span
// and (b) the mapped file region, looping per spec.md §4.10's drain rules
// until both vectors empty, an error occurs, or (under LT with <10KiB left)
// a single pass completes.
func (c *Conn) WriteFd() (int, error) {
	total := 0
	for {
		vecLen := c.ToWriteBytes()
		if vecLen == 0 {
			return total, nil
		}

		iovs := c.buildIovecs()
		n, err := unix.Writev(c.Fd, iovs)
		if n > 0 {
			total += n
			c.advance(n)
		}
		if err != nil {
			if err == unix.EAGAIN {
				return total, err
			}
			return total, err
		}
		if c.ToWriteBytes() == 0 {
			return total, nil
		}
		// Level-triggered: one pass suffices unless more than
		// lingerThreshold still awaits, per spec.md §9's loop rule.
		if !EdgeTriggered.Load() && c.ToWriteBytes() <= lingerThreshold {
			return total, nil
		}
	}
}

func (c *Conn) buildIovecs() [][]byte {
	var iovs [][]byte
	if hv := c.Write.Peek(); len(hv) > 0 {
		iovs = append(iovs, hv)
	}
	if body := c.Resp.Mapped.Bytes(); len(body) > 0 {
		iovs = append(iovs, body)
	}
	return iovs
}

// advance drains n bytes across the two gather-write vectors in order,
// clearing the write buffer once its vector empties so later iterations
// only address the mapped file region.
func (c *Conn) advance(n int) {
	headerLen := c.Write.ReadableLen()
	if n <= headerLen {
		c.Write.AdvanceRead(n)
		return
	}
	c.Write.RetrieveAll()
	n -= headerLen
	if n > 0 && c.Resp.Mapped != nil {
		c.Resp.Mapped.data = c.Resp.Mapped.data[n:]
	}
}

// Close releases the mapped region, closes the fd, and decrements the
// active-connection counter. Idempotent.
func (c *Conn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.Resp != nil {
		c.Resp.Close()
	}
	unix.Close(c.Fd)
	ActiveConns.Add(-1)
}
