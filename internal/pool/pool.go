// Package pool runs submitted jobs on a fixed set of worker goroutines that
// share one unbounded job queue.
package pool

import (
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/ledzpl/protosrv/internal/queue"
)

var (
	// ErrInvalidSize is returned by New when size is not a positive integer.
	ErrInvalidSize = errors.New("pool: size must be a positive integer")

	// ErrClosed is returned by Submit once Close has been called.
	ErrClosed = errors.New("pool: closed")

	errNilJob = errors.New("pool: nil job")
)

// Job is a unit of work executed exactly once by one worker.
type Job = func()

// Option customises a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for worker diagnostics and recovered panics.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pool is a fixed-size worker pool.
type Pool struct {
	jobs    *queue.Queue[Job]
	size    int
	logger  *log.Logger
	workers sync.WaitGroup
	close   sync.Once
}

// New starts size workers bound to a fresh job queue.
func New(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	p := &Pool{
		jobs:   queue.New[Job](),
		size:   size,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.workers.Add(size)
	for id := 0; id < size; id++ {
		go p.work(id)
	}

	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Pending returns the number of jobs waiting for a free worker.
func (p *Pool) Pending() int {
	return p.jobs.Len()
}

// Submit enqueues job without blocking. A job accepted before Close is
// guaranteed to be picked up by exactly one worker.
func (p *Pool) Submit(job func()) error {
	if job == nil {
		return errNilJob
	}
	if !p.jobs.Push(job) {
		return ErrClosed
	}
	return nil
}

// Close stops accepting jobs, lets the workers drain what is already queued,
// and returns once every worker has exited.
func (p *Pool) Close() {
	p.close.Do(p.jobs.Close)
	p.workers.Wait()
}

func (p *Pool) work(id int) {
	defer p.workers.Done()

	for {
		job, ok := p.jobs.Pop()
		if !ok {
			return
		}
		p.run(id, job)
	}
}

// run executes job, isolating the worker from a panicking job.
func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("pool: worker %d recovered from panic: %v\n%s", id, r, debug.Stack())
		}
	}()

	job()
}
