package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})

	if b.config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", b.config.MaxConcurrent)
	}
	if b.config.MaxQueue != 0 {
		t.Errorf("MaxQueue = %d, want 0", b.config.MaxQueue)
	}
}

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 3, MaxQueue: 100})

	var active, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("Peak concurrency = %d, want <= 3", p)
	}
	if m := b.Metrics(); m.Active != 0 {
		t.Errorf("Active after drain = %d, want 0", m.Active)
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxQueue: 1})

	release := make(chan struct{})
	running := make(chan struct{})
	queuedErr := make(chan error, 1)

	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	// Second call occupies the single queue slot.
	go func() {
		queuedErr <- b.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
	}()
	for {
		if b.Metrics().Queued == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Third call must be rejected synchronously.
	err := b.Acquire(context.Background())
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire() with full queue = %v, want ErrBulkheadFull", err)
	}
	if m := b.Metrics(); m.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", m.Rejected)
	}

	close(release)
	if err := <-queuedErr; err != nil {
		t.Errorf("Queued call returned %v, want nil", err)
	}
}

func TestBulkhead_FIFOOrder(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxQueue: 3})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() = %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			b.Release()
		}()
		// Serialize arrival so queue order is deterministic.
		for {
			if b.Metrics().Queued == i {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	b.Release()
	wg.Wait()

	for i, got := range order {
		if got != i+1 {
			t.Fatalf("Service order = %v, want [1 2 3]", order)
		}
	}
}

func TestBulkhead_AcquireContextCancelled(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxQueue: 1})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Acquire(ctx)
	}()
	for {
		if b.Metrics().Queued == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() = %v, want context.Canceled", err)
	}
	if m := b.Metrics(); m.Queued != 0 {
		t.Errorf("Queued after cancel = %d, want 0", m.Queued)
	}

	// The slot must still be reusable after the cancelled waiter left.
	b.Release()
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire() after release = %v, want nil", err)
	}
	b.Release()
}

func TestBulkhead_ExecutePropagatesError(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})

	opErr := errors.New("op failed")
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		return opErr
	})

	if !errors.Is(err, opErr) {
		t.Errorf("Execute() = %v, want %v", err, opErr)
	}
	if m := b.Metrics(); m.Active != 0 {
		t.Errorf("Active after failed op = %d, want 0", m.Active)
	}
}

func TestBulkhead_Metrics(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 4})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}

	m := b.Metrics()
	if m.Active != 2 {
		t.Errorf("Active = %d, want 2", m.Active)
	}
	if m.Capacity != 4 {
		t.Errorf("Capacity = %d, want 4", m.Capacity)
	}
	if m.Utilization != 0.5 {
		t.Errorf("Utilization = %v, want 0.5", m.Utilization)
	}
	if m.MaxActive != 2 {
		t.Errorf("MaxActive = %d, want 2", m.MaxActive)
	}

	b.Release()
	b.Release()
}
