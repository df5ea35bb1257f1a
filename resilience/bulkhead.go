package resilience

import (
	"context"
	"sync"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent executions.
	// Default: 10
	MaxConcurrent int

	// MaxQueue is the maximum number of waiting requests. Zero means no
	// queueing: admission fails immediately once the slots are full.
	MaxQueue int
}

// Bulkhead bounds concurrent executions and queues overflow up to MaxQueue,
// serving waiters in FIFO order. Admission beyond slots and queue is
// rejected synchronously with ErrBulkheadFull.
type Bulkhead struct {
	config BulkheadConfig

	mu        sync.Mutex
	active    int
	maxActive int
	queue     []chan struct{}
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.MaxQueue < 0 {
		config.MaxQueue = 0
	}

	return &Bulkhead{config: config}
}

// Acquire claims an execution slot, waiting in the queue if necessary.
// Returns ErrBulkheadFull when both slots and queue are at capacity.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	b.mu.Lock()

	if b.active < b.config.MaxConcurrent {
		b.active++
		if b.active > b.maxActive {
			b.maxActive = b.active
		}
		b.mu.Unlock()
		return nil
	}

	if len(b.queue) >= b.config.MaxQueue {
		b.rejected++
		b.mu.Unlock()
		return ErrBulkheadFull
	}

	ready := make(chan struct{})
	b.queue = append(b.queue, ready)
	b.mu.Unlock()

	select {
	case <-ready:
		// The releasing goroutine transferred its slot to us.
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		for i, ch := range b.queue {
			if ch == ready {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				b.mu.Unlock()
				return ctx.Err()
			}
		}
		b.mu.Unlock()
		// The slot was granted concurrently with cancellation; give it back.
		b.Release()
		return ctx.Err()
	}
}

// Release returns an execution slot. If waiters are queued, the slot is
// handed to the oldest waiter instead of being freed.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	if len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		// active is unchanged: the slot moves to the dequeued waiter.
		if b.active > b.maxActive {
			b.maxActive = b.active
		}
		b.mu.Unlock()
		close(next)
		return
	}
	if b.active > 0 {
		b.active--
	}
	b.mu.Unlock()
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Metrics returns current bulkhead statistics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:      b.active,
		Queued:      len(b.queue),
		MaxActive:   b.maxActive,
		Capacity:    b.config.MaxConcurrent,
		Utilization: float64(b.active) / float64(b.config.MaxConcurrent),
		Rejected:    b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active      int
	Queued      int
	MaxActive   int
	Capacity    int
	Utilization float64
	Rejected    int64
}
