package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

// Task is one unit of work. Errors are logged, not propagated.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	wg       sync.WaitGroup
	jobs     chan Task
	quit     chan struct{}
	stopOnce sync.Once
	n        int
	log      *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Int("worker", id).Interface("panic", rec).Msg("worker task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("worker task error")
	}
}

// Stop signals workers to exit and waits for in-flight tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues without blocking and fails when the queue is saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case <-p.quit:
		return ErrStopped
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait blocks until the task is queued, the pool stops, or ctx ends.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.jobs <- task:
		return nil
	case <-p.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
