package resilience

import (
	"context"
	"reflect"
	"runtime"
	"strings"
	"time"
)

// Operation is any zero-argument asynchronous operation producing a T.
type Operation[T any] func(ctx context.Context) (T, error)

// FailureStage identifies where in the execution pipeline a failure was
// observed, for the OnFailure hook.
type FailureStage string

const (
	// FailureRetryExhausted marks the terminal error of the protected call
	// after all configured attempts (including circuit rejections, which make
	// zero attempts).
	FailureRetryExhausted FailureStage = "retry_exhausted"
	// FailureFallbackFailed marks an error from the fallback itself.
	FailureFallbackFailed FailureStage = "fallback_failed"
)

// Executor composes multiple resilience patterns around typed operations.
type Executor[T any] struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        *Timeout
	fallback       func(ctx context.Context, cause error) (T, error)
	cache          *opCache[T]
	onFailure      func(operation string, stage FailureStage, err error)
}

// ExecutorOption configures an Executor.
type ExecutorOption[T any] func(*Executor[T])

// NewExecutor creates a new resilience executor.
func NewExecutor[T any](opts ...ExecutorOption[T]) *Executor[T] {
	e := &Executor[T]{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker[T any](cb *CircuitBreaker) ExecutorOption[T] {
	return func(e *Executor[T]) { e.circuitBreaker = cb }
}

// WithRetry adds retry logic to the executor.
func WithRetry[T any](r *Retry) ExecutorOption[T] {
	return func(e *Executor[T]) { e.retry = r }
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter[T any](rl *RateLimiter) ExecutorOption[T] {
	return func(e *Executor[T]) { e.rateLimiter = rl }
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead[T any](b *Bulkhead) ExecutorOption[T] {
	return func(e *Executor[T]) { e.bulkhead = b }
}

// WithTimeout adds a deadline on each attempt of the protected call.
func WithTimeout[T any](timeout time.Duration) ExecutorOption[T] {
	return func(e *Executor[T]) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// WithFallback adds a fallback producing a substitute result when the
// protected call fails terminally.
func WithFallback[T any](fb func(ctx context.Context, cause error) (T, error)) ExecutorOption[T] {
	return func(e *Executor[T]) { e.fallback = fb }
}

// WithCache memoizes the most recent successful result per operation name
// for ttl. Failures are never cached.
func WithCache[T any](ttl time.Duration) ExecutorOption[T] {
	return func(e *Executor[T]) { e.cache = newOpCache[T](ttl) }
}

// WithOnFailure adds an observability hook fired on terminal failures.
func WithOnFailure[T any](fn func(operation string, stage FailureStage, err error)) ExecutorOption[T] {
	return func(e *Executor[T]) { e.onFailure = fn }
}

// Execute runs the operation through all configured resilience patterns.
//
// The execution order is:
//  1. Cache (if configured) - returns a fresh memoized success without any call
//  2. Rate Limiter (if configured) - delays until tokens are available
//  3. Bulkhead (if configured) - limits concurrency
//  4. Circuit Breaker (if configured) - sees the whole retry sequence as one
//     observation; while open, the operation is never invoked
//  5. Retry (if configured) - retries each failed attempt
//  6. Timeout (if configured) - bounds each attempt
//
// On terminal failure the fallback (if configured) supplies the result; its
// own error replaces the original. OnFailure fires once for the terminal
// error and again if the fallback fails.
func (e *Executor[T]) Execute(ctx context.Context, operation string, op Operation[T]) (T, error) {
	if e.cache == nil {
		return e.execute(ctx, operation, op)
	}

	if v, ok := e.cache.get(operation); ok {
		return v, nil
	}
	return e.cache.do(operation, func() (T, error) {
		// Re-check: another caller may have populated the entry while this
		// one waited on the flight group.
		if v, ok := e.cache.get(operation); ok {
			return v, nil
		}
		return e.execute(ctx, operation, op)
	})
}

func (e *Executor[T]) execute(ctx context.Context, operation string, op Operation[T]) (T, error) {
	var result T

	// Build the execution chain from inside out.
	call := func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}

	if e.timeout != nil {
		inner := call
		call = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := call
		call = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := call
		call = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := call
		call = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	if e.rateLimiter != nil {
		inner := call
		call = func(ctx context.Context) error {
			if err := e.rateLimiter.Acquire(ctx, operation); err != nil {
				return err
			}
			return inner(ctx)
		}
	}

	err := call(ctx)
	if err == nil {
		if e.cache != nil {
			e.cache.set(operation, result)
		}
		return result, nil
	}

	if e.onFailure != nil {
		e.onFailure(operation, FailureRetryExhausted, err)
	}

	if e.fallback != nil {
		v, fbErr := e.fallback(ctx, err)
		if fbErr != nil {
			if e.onFailure != nil {
				e.onFailure(operation, FailureFallbackFailed, fbErr)
			}
			var zero T
			return zero, fbErr
		}
		return v, nil
	}

	var zero T
	return zero, err
}

// Wrap returns an Operation with the executor applied, using the given
// operation name. An empty name is derived from the function's own name,
// falling back to a generic label for anonymous functions.
func Wrap[T any](e *Executor[T], operation string, op Operation[T]) Operation[T] {
	if operation == "" {
		operation = operationName(op)
	}
	return func(ctx context.Context) (T, error) {
		return e.Execute(ctx, operation, op)
	}
}

func operationName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "operation"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	// Anonymous functions compile to func1, func2, ...
	if name == "" || strings.HasPrefix(name, "func") {
		return "operation"
	}
	return name
}
