package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is one unit of asynchronous write work.
type Task func(ctx context.Context) error

// ErrQueueClosed is returned by Enqueue after Close has been called.
var ErrQueueClosed = errors.New("ingest queue closed")

// Queue is a bounded FIFO of pending write tasks drained by a fixed worker
// pool. Enqueue blocks when the queue is full, giving the message consumer
// backpressure instead of unbounded growth or silent drops. A failing task
// is logged and isolated; workers never terminate on task errors.
type Queue struct {
	tasks   chan Task
	done    chan struct{}
	workers int
	logger  *slog.Logger

	onResult func(err error)

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithResultHook installs a callback invoked after every executed task,
// e.g. to feed metrics.
func WithResultHook(hook func(err error)) QueueOption {
	return func(q *Queue) {
		q.onResult = hook
	}
}

// NewQueue creates a queue with the given capacity and worker pool size.
func NewQueue(capacity, workers int, opts ...QueueOption) *Queue {
	if capacity <= 0 {
		capacity = 50
	}
	if workers <= 0 {
		workers = 20
	}
	q := &Queue{
		tasks:   make(chan Task, capacity),
		done:    make(chan struct{}),
		workers: workers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker pool. Workers run until the queue is closed or
// ctx is cancelled. Start is idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.workerLoop(ctx)
		}
	})
}

func (q *Queue) workerLoop(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case task := <-q.tasks:
			q.run(ctx, task)
		case <-q.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case task := <-q.tasks:
					q.run(ctx, task)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return task(ctx)
	}()

	if err != nil {
		q.logger.Warn("error while processing request", "error", err)
	}
	if q.onResult != nil {
		q.onResult(err)
	}
}

// Enqueue adds a task, blocking while the queue is full until a worker
// frees a slot or ctx is cancelled. After Close it returns ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue adds a task without blocking, reporting whether it was queued.
func (q *Queue) TryEnqueue(task Task) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.tasks <- task:
		return true
	default:
		return false
	}
}

// Depth returns the number of queued tasks.
func (q *Queue) Depth() int {
	return len(q.tasks)
}

// Close stops accepting tasks and waits for the workers to drain the queue.
// Idempotent; a later Enqueue fails with ErrQueueClosed instead of blocking.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}
