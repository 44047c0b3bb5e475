// Package dbpool implements the fixed-size FIFO of opaque database handles
// described in spec.md §4.6, grounded on the original source's
// SqlConnPool (pool/sqlconnpool.h/.cpp): size handles established up
// front, acquire/release guarded by a counting semaphore plus a mutex
// around the FIFO itself.
package dbpool

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// Handle is the opaque database handle spec.md §1 asks the core to see:
// connect, close, query(sql) -> rows. Each Handle wraps a *sql.DB limited
// to a single open connection so the pool — not database/sql — owns the
// acquire/release discipline.
type Handle struct {
	db *sql.DB
}

// Query runs sql and returns the resulting rows.
func (h *Handle) Query(query string, args ...any) (*sql.Rows, error) {
	if h == nil || h.db == nil {
		return nil, fmt.Errorf("dbpool: nil handle")
	}
	return h.db.Query(query, args...)
}

// Exec runs a non-query statement (e.g. INSERT).
func (h *Handle) Exec(query string, args ...any) (sql.Result, error) {
	if h == nil || h.db == nil {
		return nil, fmt.Errorf("dbpool: nil handle")
	}
	return h.db.Exec(query, args...)
}

func (h *Handle) close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Logger is the minimal interface dbpool needs from internal/applog,
// avoiding an import cycle while still logging per-failure as spec.md §4.6
// requires.
type Logger interface {
	Errorf(format string, args ...any)
}

// Pool is a fixed-size, FIFO handle pool with a counting semaphore
// (buffered channel) gating acquisition.
type Pool struct {
	mu     sync.Mutex
	free   []*Handle
	sem    chan struct{}
	size   int
	log    Logger
}

// Init establishes size handles against the given MySQL DSN components. If
// fewer than size handles can be established, each failure is logged and
// whatever succeeded is still registered — subsequent Acquire calls may
// therefore return a nil handle, which callers must tolerate (spec.md §4.6
// Failure clause).
func Init(host string, port int, user, pwd, dbName string, size int, log Logger) *Pool {
	p := &Pool{
		sem:  make(chan struct{}, size),
		size: size,
		log:  log,
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", user, pwd, host, port, dbName)
	for i := 0; i < size; i++ {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			if p.log != nil {
				p.log.Errorf("dbpool: open handle %d/%d failed: %v", i+1, size, err)
			}
			p.sem <- struct{}{}
			continue
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := db.Ping(); err != nil {
			if p.log != nil {
				p.log.Errorf("dbpool: connect handle %d/%d failed: %v", i+1, size, err)
			}
			db.Close()
			p.sem <- struct{}{}
			continue
		}
		p.free = append(p.free, &Handle{db: db})
		p.sem <- struct{}{}
	}
	return p
}

// Acquire blocks on the counting semaphore when exhausted, then pops a
// handle under the mutex. May return nil if initialisation under-filled
// the pool (§4.6 Failure clause) — callers must tolerate this.
func (p *Pool) Acquire() *Handle {
	<-p.sem
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil
	}
	h := p.free[0]
	p.free = p.free[1:]
	return h
}

// Release returns a handle to the free list and signals the semaphore.
// Releasing a nil handle (acquired during an under-filled pool) is a no-op
// other than restoring the semaphore slot.
func (p *Pool) Release(h *Handle) {
	p.mu.Lock()
	if h != nil {
		p.free = append(p.free, h)
	}
	p.mu.Unlock()
	p.sem <- struct{}{}
}

// Guard is the scoped acquire/release wrapper spec.md §4.6 requires so
// callers cannot leak a handle on any early-exit path, grounded on the
// original source's sqlconnRAII.h.
type Guard struct {
	pool   *Pool
	Handle *Handle
}

// NewGuard acquires a handle and returns it in a Guard; callers must defer
// g.Release().
func (p *Pool) NewGuard() *Guard {
	return &Guard{pool: p, Handle: p.Acquire()}
}

func (g *Guard) Release() {
	g.pool.Release(g.Handle)
}

// CloseAll closes every handle on the free list and empties it. Handles
// checked out at the time are not closed, and the semaphore is left as is,
// so Acquire afterwards returns nil while the free list is empty.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.free {
		h.close()
	}
	p.free = nil
}

// Acquired reports in-use count, i.e. size - free, for invariant checks
// (spec.md §8 invariant 5: acquired + free == size).
func (p *Pool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - len(p.free)
}

func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

func (p *Pool) Size() int { return p.size }
