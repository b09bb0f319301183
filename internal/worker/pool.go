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

// JobFunc adapts a function to Job
type JobFunc func(ctx context.Context) Result

// Execute calls f
func (f JobFunc) Execute(ctx context.Context) Result {
	return f(ctx)
}

// Pool runs jobs on a fixed number of goroutines.
// Results arrive in completion order, not submission order.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	startOnce  sync.Once
}

// NewPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers. Calling it again is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			// Wait drains results until every worker exits
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Go feeds jobs to the workers from a separate goroutine and closes the
// queue afterwards. Jobs still unsent when the pool's context is cancelled
// are dropped; callers reconcile them from the results.
func (p *Pool) Go(jobs []Job) {
	go func() {
		defer close(p.jobQueue)
		for _, job := range jobs {
			select {
			case <-p.ctx.Done():
				return
			case p.jobQueue <- job:
			}
		}
	}()
}

// Wait blocks until the workers exit and returns every result, in
// completion order. It must follow Go.
func (p *Pool) Wait() []Result {
	go func() {
		p.wg.Wait()
		close(p.results)
		p.cancelFunc()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}

	return results
}
