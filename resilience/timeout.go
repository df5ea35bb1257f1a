package resilience

import (
	"context"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum time to wait for the operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout races operations against a deadline. On expiry the wait is
// abandoned and ErrTimeout returned; the underlying operation keeps running
// with its original context, so the caller is responsible for cancelling
// side effects if needed.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	// Apply defaults
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs the operation, returning ErrTimeout if it does not complete
// within the configured deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	timer := time.NewTimer(t.config.Timeout)
	defer timer.Stop()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout is a convenience function to run one operation with a
// deadline without constructing a Timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	t := NewTimeout(TimeoutConfig{Timeout: timeout})
	return t.Execute(ctx, op)
}
