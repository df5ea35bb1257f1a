package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiterConfig configures the weighted token bucket rate limiter.
type RateLimiterConfig struct {
	// MaxTokens is the bucket capacity.
	// Default: 100
	MaxTokens float64

	// Window is the time to refill the whole bucket. The bucket refills
	// continuously at MaxTokens/Window.
	// Default: 1 second
	Window time.Duration

	// Weights maps operation names to token cost. Operations absent from the
	// map cost 1 token. A configured weight greater than MaxTokens is a
	// construction error: such an operation could never be granted.
	Weights map[string]float64

	// OnWait, if set, is called when an acquisition must wait for refill.
	OnWait func(operation string, delay time.Duration)
}

// RateLimiter implements a weighted token bucket. Acquire is a throttle, not
// a rejector: lack of tokens causes delay, never an error.
//
// Acquisitions reserve tokens at arrival time, so concurrent callers are
// served in FIFO order of arrival and the wait is computed analytically
// rather than by polling.
type RateLimiter struct {
	config RateLimiterConfig
	rate   float64 // tokens per second

	mu          sync.Mutex
	tokens      float64
	lastRefresh time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) (*RateLimiter, error) {
	// Apply defaults
	if config.MaxTokens <= 0 {
		config.MaxTokens = 100
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}

	for op, w := range config.Weights {
		if w <= 0 {
			return nil, fmt.Errorf("resilience: weight for %q must be positive, got %v", op, w)
		}
		if w > config.MaxTokens {
			return nil, fmt.Errorf("resilience: weight for %q (%v) exceeds bucket capacity (%v)", op, w, config.MaxTokens)
		}
	}

	return &RateLimiter{
		config:      config,
		rate:        config.MaxTokens / config.Window.Seconds(),
		tokens:      config.MaxTokens,
		lastRefresh: time.Now(),
	}, nil
}

// Weight returns the token cost of the named operation.
func (rl *RateLimiter) Weight(operation string) float64 {
	if w, ok := rl.config.Weights[operation]; ok {
		return w
	}
	return 1
}

// Acquire blocks until the bucket holds enough tokens for the operation,
// then consumes them. It returns early only when the context is cancelled,
// in which case the reservation is returned to the bucket.
func (rl *RateLimiter) Acquire(ctx context.Context, operation string) error {
	w := rl.Weight(operation)

	rl.mu.Lock()
	rl.refillLocked()
	rl.tokens -= w
	deficit := -rl.tokens
	rl.mu.Unlock()

	if deficit <= 0 {
		return nil
	}

	// The reservation is already taken; the refill schedule determines
	// exactly when it is covered.
	wait := time.Duration(deficit / rl.rate * float64(time.Second))
	if rl.config.OnWait != nil {
		rl.config.OnWait(operation, wait)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		rl.mu.Lock()
		rl.tokens += w
		if rl.tokens > rl.config.MaxTokens {
			rl.tokens = rl.config.MaxTokens
		}
		rl.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Allow reports whether the operation could proceed right now, consuming
// tokens if so. Unlike Acquire it never waits and never reserves a deficit.
func (rl *RateLimiter) Allow(operation string) bool {
	w := rl.Weight(operation)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= w {
		rl.tokens -= w
		return true
	}
	return false
}

func (rl *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefresh)
	rl.lastRefresh = now

	rl.tokens += elapsed.Seconds() * rl.rate
	if rl.tokens > rl.config.MaxTokens {
		rl.tokens = rl.config.MaxTokens
	}
}

// Tokens returns the current token balance. A negative balance means
// pending acquisitions have reserved tokens ahead of the refill schedule.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket to full capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = rl.config.MaxTokens
	rl.lastRefresh = time.Now()
}
