// Package propagation runs memory-store writes behind the request path.
// The relational store is written synchronously by callers; everything
// submitted here is eventually consistent and allowed to fail.
package propagation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const taskTimeout = 10 * time.Second

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Pool is a bounded background worker pool. A full queue drops the task
// rather than blocking the caller.
type Pool struct {
	queue   chan task
	workers int
	logger  *slog.Logger

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex

	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:   make(chan task, queueSize),
		workers: workers,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("propagation pool started", "workers", p.workers, "queue_size", cap(p.queue))
}

// Stop drains nothing: queued tasks that have not started are dropped,
// consistent with the fire-and-forget contract.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	if remaining := len(p.queue); remaining > 0 {
		p.logger.Warn("propagation pool stopped with queued tasks", "remaining", remaining)
	} else {
		p.logger.Info("propagation pool stopped")
	}
}

// Submit enqueues a task. It never blocks; false means the queue was full
// and the task was dropped.
func (p *Pool) Submit(name string, run func(ctx context.Context) error) bool {
	select {
	case p.queue <- task{name: name, run: run}:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("propagation queue full, task dropped", "task", name)
		return false
	}
}

// Counters returns the succeeded, failed, and dropped task counts.
func (p *Pool) Counters() (succeeded, failed, dropped int64) {
	return p.succeeded.Load(), p.failed.Load(), p.dropped.Load()
}

// QueueDepth returns the number of tasks waiting to run.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case t := <-p.queue:
			p.execute(t)
		}
	}
}

func (p *Pool) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("propagation task panicked", "task", t.name, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := t.run(ctx); err != nil {
		p.failed.Add(1)
		p.logger.Warn("propagation task failed", "task", t.name, "error", err)
		return
	}
	p.succeeded.Add(1)
}

// Inline runs tasks synchronously on the caller's goroutine, used when
// background writes are disabled.
type Inline struct {
	logger *slog.Logger
}

// NewInline creates an inline executor.
func NewInline(logger *slog.Logger) *Inline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inline{logger: logger}
}

// Submit runs the task immediately. Failures are logged and swallowed so
// the caller's contract matches the pool's.
func (e *Inline) Submit(name string, run func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()
	if err := run(ctx); err != nil {
		e.logger.Warn("propagation task failed", "task", name, "error", err)
	}
	return true
}
