package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBreakerDestroyed is returned when a destroyed circuit breaker is used.
	ErrBreakerDestroyed = errors.New("resilience: circuit breaker destroyed")

	// ErrBulkheadFull is returned when both the execution slots and the
	// wait queue of a bulkhead are at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrTimeout is returned when an operation exceeds its deadline.
	// The underlying operation is not cancelled, only the wait is abandoned.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// CircuitOpenError is returned by CircuitBreaker.Execute when the circuit
// rejects a call without invoking the operation. It carries the state the
// breaker was in at rejection time and unwraps to ErrCircuitOpen so callers
// can match it with errors.Is.
type CircuitOpenError struct {
	State State
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker is open (state=%s)", e.State)
}

func (e *CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}
