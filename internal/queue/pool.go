package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fetchlog/pkg/logger"
)

var (
	// ErrQueueFull is returned by Submit when the buffer has no free slot
	ErrQueueFull = errors.New("log queue is full")

	// ErrClosed is returned by Submit after Stop
	ErrClosed = errors.New("log queue is closed")
)

// Job is a unit of background work. ctx is cancelled when the pool is
// stopped past its deadline.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed set of workers. Submit never blocks; jobs are
// taken in FIFO order and, with a single worker, also finish in that order.
type Pool struct {
	numWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	logger     logger.Logger

	mu      sync.Mutex
	closed  bool
	started bool
	pending int
	idle    chan struct{}
}

// NewPool creates a pool with numWorkers workers and room for bufferSize
// queued jobs
func NewPool(numWorkers, bufferSize int, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, bufferSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     log,
		idle:       idle,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	p.logger.DebugWithFields("Starting log queue", map[string]interface{}{
		"num_workers": p.numWorkers,
		"buffer_size": cap(p.jobs),
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- job:
		if p.pending == 0 {
			p.idle = make(chan struct{})
		}
		p.pending++
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until every submitted job has finished or ctx is done
func (p *Pool) Wait(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for log queue: %w", ctx.Err())
	}
}

// Stop rejects new jobs and drains the queue. When ctx expires first, running
// jobs are cancelled and the context error is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	started := p.started
	if !started && p.pending > 0 {
		// never started: queued jobs are discarded
		p.pending = 0
		close(p.idle)
	}
	p.mu.Unlock()

	p.logger.Debug("Stopping log queue...")

	if !started {
		p.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Debug("Log queue stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.logger.Warn("Log queue stopped before draining")
		return fmt.Errorf("stopping log queue: %w", ctx.Err())
	}
}

// QueueSize returns the number of jobs waiting for a worker
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(id, job)
	}

	p.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// run executes one job; a panicking job is logged and does not kill the worker
func (p *Pool) run(id int, job Job) {
	defer p.done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorWithFields("Log job panicked", map[string]interface{}{
				"worker_id": id,
				"panic":     fmt.Sprint(r),
			})
		}
	}()

	job(p.ctx)
}

func (p *Pool) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.pending == 0 {
		close(p.idle)
	}
}
