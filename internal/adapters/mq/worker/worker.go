// Package worker runs bulk-scan units with a fixed number of paced workers.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/genieiq/genieiq/internal/adapters/mq/queue"
	"github.com/genieiq/genieiq/internal/adapters/upstream"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// Task is one unit of bulk work.
type Task = queue.Task

// Scanner scans and persists one space.
type Scanner interface {
	ScanTask(ctx context.Context, t Task) error
}

// Queue is the cursor workers pull from.
type Queue interface {
	Next(ctx context.Context) (Task, bool)
}

// Tracker receives unit outcomes for a job.
type Tracker interface {
	// Active reports whether workers may pull another unit. Checked before
	// every pull; a unit in flight always finishes.
	Active() bool
	Done(t Task)
	Skip(t Task, reason string, err error)
	Fail(t Task, reason string, err error)
}

// InMemoryWorker processes tasks until the cursor is empty, the job stops
// or it is shut down.
type InMemoryWorker struct {
	queue   Queue
	scanner Scanner
	tracker Tracker
	name    string
	delay   time.Duration

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scanner Scanner, tracker Tracker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		scanner:  scanner,
		tracker:  tracker,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("job-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run pulls and processes units, pausing after each one.
func (w *InMemoryWorker) Run(ctx context.Context) {
	metrics.AddWorkerCount(1)
	defer func() {
		metrics.AddWorkerCount(-1)
		close(w.done)
	}()

	for {
		if ctx.Err() != nil || w.stopping() || !w.tracker.Active() {
			return
		}
		t, ok := w.queue.Next(ctx)
		if !ok {
			return
		}
		w.process(ctx, t)
		if !w.pause(ctx) {
			return
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) stopping() bool {
	select {
	case <-w.shutdown:
		return true
	default:
		return false
	}
}

// pause waits out the delay. Returns false if the worker should stop.
func (w *InMemoryWorker) pause(ctx context.Context) bool {
	if w.delay <= 0 {
		return true
	}
	timer := time.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.shutdown:
		return false
	}
}

// Stop asks the worker to return after its current unit without waiting.
func (w *InMemoryWorker) Stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown stops the worker after its current unit and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.Stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process scans one unit and reports its classified outcome.
func (w *InMemoryWorker) process(ctx context.Context, t Task) {
	err := w.scan(ctx, t)
	if err == nil {
		w.tracker.Done(t)
		metrics.RecordJobUnit("ok", "")
		return
	}

	class := upstream.Classify(err)
	if class.Skippable() {
		w.tracker.Skip(t, string(class), err)
		metrics.RecordJobUnit("skipped", string(class))
		w.logger.Debug(ctx, "space skipped",
			logger.String("space_id", t.SpaceID),
			logger.String("reason", string(class)),
			logger.Error(err),
		)
		return
	}

	w.tracker.Fail(t, string(class), err)
	metrics.RecordJobUnit("error", string(class))
	metrics.RecordErrorByComponent("worker", string(class))
	w.logger.Error(ctx, "space scan failed",
		logger.String("space_id", t.SpaceID),
		logger.String("reason", string(class)),
		logger.Error(err),
	)
}

// scan calls the scanner, turning a panic into an error so one unit can
// never take down the job.
func (w *InMemoryWorker) scan(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan %s panicked: %v", t.SpaceID, r)
		}
	}()
	return w.scanner.ScanTask(ctx, t)
}

// Pool manages a fixed set of workers sharing one cursor.
type Pool struct {
	workers []*InMemoryWorker
	done    chan struct{}
	logger  logger.Logger
}

// NewPool creates workerCount workers. Counts below 1 become 1.
func NewPool(workerCount int, q Queue, scanner Scanner, tracker Tracker, opts ...Option) *Pool {
	workerCount = max(workerCount, 1)
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		done:    make(chan struct{}),
		logger:  logger.Get().Named("job-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, scanner, tracker, wopts...)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers. Done is closed once every worker has returned.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go func() {
		for _, w := range p.workers {
			<-w.done
		}
		close(p.done)
	}()
}

// Done is closed when all workers have stopped.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Stop asks every worker to return after its current unit.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// Shutdown stops every worker after its current unit and waits until they
// have all returned or ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.Stop()
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return err
		}
	}
	return nil
}
