// SPDX-License-Identifier: MIT

// Package pool runs recording tasks on a fixed set of workers fed by
// one shared queue.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tonband/aircheck/internal/metrics"
)

// Task is one unit of work. Tasks carry their own context and report
// their outcome through their own channels; the pool only runs them.
type Task func()

var (
	// ErrClosed is returned by Submit after Stop has been called.
	ErrClosed = errors.New("pool: closed")
	// ErrNilTask is returned by Submit for a nil task.
	ErrNilTask = errors.New("pool: nil task")
)

// Pool distributes tasks to a fixed number of workers. Every submitted
// task is run exactly once by exactly one worker, in submission order
// per queue. After Stop the workers drain the queue and exit.
type Pool struct {
	tasks   chan Task
	workers int
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New starts a pool with the given worker count and queue capacity.
// It panics when workers is below one or queue is negative; a pool
// that cannot run anything is a programming error, not a runtime
// condition.
func New(workers, queue int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		panic(fmt.Sprintf("pool: worker count must be positive, got %d", workers))
	}
	if queue < 0 {
		panic(fmt.Sprintf("pool: queue capacity must not be negative, got %d", queue))
	}

	p := &Pool{
		tasks:   make(chan Task, queue),
		workers: workers,
		logger:  logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}

	p.logger.Debug().
		Int("workers", workers).
		Int("queue_size", queue).
		Msg("worker pool started")

	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	p.logger.Debug().Int("worker", id).Msg("worker started")
	for task := range p.tasks {
		task()
		metrics.IncPoolCompleted()
	}
	p.logger.Debug().Int("worker", id).Msg("worker exiting")
}

// Submit queues a task for execution. It blocks while the queue is
// full, so size the queue for the expected task count. After Stop it
// returns ErrClosed.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.tasks <- task
	metrics.IncPoolSubmitted()
	return nil
}

// Stop closes the queue and waits until the workers have drained it
// and exited. Safe to call multiple times; every call blocks until
// shutdown is complete.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Workers returns the number of workers the pool runs.
func (p *Pool) Workers() int {
	return p.workers
}
