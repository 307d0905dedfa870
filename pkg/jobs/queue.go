package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the buffer has no free slot.
var ErrQueueFull = errors.New("queue is full")

// Handler processes one queued item.
type Handler[T any] func(ctx context.Context, item T) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a bounded in-memory worker pool. Stop drains whatever is buffered.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config

	items   chan T
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		items:   make(chan T, cfg.BufferSize),
	}
}

// Start launches the workers. Cancelling ctx does not abort buffered work; call Stop.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.ctx = context.WithoutCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.cfg.Logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.cfg.Workers)
}

// Stop refuses new items, waits for buffered items to be handled and returns.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.stopped = true
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.items)
	q.mu.Unlock()
	q.wg.Wait()
	q.cfg.Logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue buffers an item without blocking.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.stopped {
		return fmt.Errorf("queue %s is not running", q.name)
	}
	select {
	case q.items <- item:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for item := range q.items {
		q.process(item)
	}
}

func (q *Queue[T]) process(item T) {
	var err error
	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(q.cfg.RetryDelay)
		}
		if err = q.handler(q.ctx, item); err == nil {
			return
		}
		q.cfg.Logger.Sugar().Warnw("queue item failed", "queue", q.name, "attempt", attempt+1, "error", err)
	}
	q.cfg.Logger.Sugar().Errorw("queue item dropped after retries", "queue", q.name, "error", err)
}
