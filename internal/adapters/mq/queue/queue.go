// Package queue holds the shared cursor that bulk-scan workers pull space
// ids from.
//
// A job loads every task before its workers start, so Next never blocks:
// an empty cursor means the job has no more work.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/pkg/metrics"
)

const defaultCapacity = 100000

// Task is one unit of bulk work.
type Task = model.ScanTask

// Queue is a bounded FIFO of scan tasks.
type Queue interface {
	// Enqueue adds a task. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// Next pops the oldest task. Returns false when the queue is empty,
	// drained after Close, or ctx is done.
	Next(ctx context.Context) (Task, bool)

	// Len returns the number of pending tasks.
	Len(ctx context.Context) int

	// Close stops further enqueues. Pending tasks can still be pulled.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)
	return q
}

// Enqueue adds a task without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	select {
	case q.tasks <- t:
		metrics.AddJobQueueDepth(1)
		return true
	default:
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}
}

// EnqueueAll loads tasks in order. It stops at the first task that does not
// fit and reports how many were accepted.
func (q *InMemoryQueue) EnqueueAll(ctx context.Context, tasks []Task) (int, error) {
	for i, t := range tasks {
		if !q.Enqueue(ctx, t) {
			switch {
			case q.IsClosed():
				return i, ErrClosed
			case ctx.Err() != nil:
				return i, ctx.Err()
			default:
				return i, fmt.Errorf("%w: capacity %d", ErrFull, q.capacity)
			}
		}
	}
	return len(tasks), nil
}

// Next pops the oldest pending task without blocking.
func (q *InMemoryQueue) Next(ctx context.Context) (Task, bool) {
	if ctx.Err() != nil {
		return Task{}, false
	}
	select {
	case t, ok := <-q.tasks:
		if ok {
			metrics.AddJobQueueDepth(-1)
		}
		return t, ok
	default:
		return Task{}, false
	}
}

// Drain discards pending tasks and returns how many were dropped.
func (q *InMemoryQueue) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-q.tasks:
			if !ok {
				metrics.AddJobQueueDepth(-n)
				return n
			}
			n++
		default:
			metrics.AddJobQueueDepth(-n)
			return n
		}
	}
}

// Len returns the current number of pending tasks.
func (q *InMemoryQueue) Len(context.Context) int {
	return len(q.tasks)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
