// Package workerpool implements the bounded job-dispatch pool of spec.md
// §4.7: a fixed number of goroutines pulling connection-ready jobs off a
// bounded queue, generalized from the single unbounded channel in
// server/engine/pool.go's startWorkerPool/workerEpoll into the explicit
// bounded queue spec.md calls for.
package workerpool

import (
	"runtime"
	"sync"

	"github.com/s00inx/reactorhttpd/internal/queue"
)

// Job is a unit of work dispatched to a worker: the ready file descriptor
// plus a callback that does the actual read/parse/write cycle, mirroring
// workerEpoll's (epollfd, fd) -> handleConn shape.
type Job struct {
	Fd int
	Do func(fd int)
}

// Pool runs a fixed number of workers draining a shared bounded queue.
// Submitting to a full pool blocks the caller (typically the reactor's
// single event-loop goroutine), applying backpressure to the accept loop
// itself rather than growing memory unboundedly.
type Pool struct {
	jobs *queue.Queue
	wg   sync.WaitGroup
}

// New starts a pool of n workers (n <= 0 defaults to runtime.NumCPU, as
// startWorkerPool does) backed by a queue bounded to capacity pending jobs.
func New(n, capacity int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{jobs: queue.New(capacity)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		item, ok := p.jobs.Pop()
		if !ok {
			return
		}
		job := item.(Job)
		job.Do(job.Fd)
	}
}

// Submit enqueues a job, blocking while the pool's queue is full. Returns
// false if the pool has been stopped.
func (p *Pool) Submit(fd int, do func(fd int)) bool {
	return p.jobs.PushBack(Job{Fd: fd, Do: do})
}

// Stop waits for the workers to drain the job queue, then closes it and
// waits for every worker to exit.
func (p *Pool) Stop() {
	for !p.jobs.Empty() {
		runtime.Gosched()
	}
	p.jobs.Close()
	p.wg.Wait()
}

// Pending reports the current backlog size, useful for load-shedding
// decisions in the reactor (analogous to MAX_FD busy-response gating).
func (p *Pool) Pending() int { return p.jobs.Size() }
