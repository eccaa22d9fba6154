// Package worker runs independent exercise gradings concurrently and paces
// outbound requests.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a fixed number of workers that execute jobs concurrently.
// Results are collected as they arrive, so Submit never waits on a reader.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    *ResultCollector
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	// mu guards closed; Submit holds it shared while sending
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs see a context derived from
// parent; cancelling parent stops the pool like Shutdown
func NewPoolWithContext(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    NewResultCollector(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok || p.ctx.Err() != nil {
				return
			}
			p.results.Add(job.Execute(p.ctx))
		}
	}
}

// Submit queues a job. It returns without queuing once the pool is shut down.
func (p *Pool) Submit(job Job) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait closes the queue, waits for every queued job and returns the
// results in completion order
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	p.cancelFunc()
	return p.results.Results()
}

// Shutdown stops the workers after their current job; queued jobs are dropped
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.closeQueue()
	p.wg.Wait()
}

func (p *Pool) closeQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
}

// ResultCollector gathers results from concurrent workers
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a copy of all collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}
