package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/streamcore/resilience"
)

// BreakerChecker reports the health of a circuit breaker.
//
// An open breaker means the protected dependency is failing, so the check
// reports unhealthy. A half-open breaker is probing recovery and reports
// degraded.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker for the given breaker.
func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

// Name returns the name of this checker.
func (b *BreakerChecker) Name() string {
	return b.name
}

// Check reports the breaker's current state.
func (b *BreakerChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	state := b.breaker.State()
	metrics := b.breaker.Metrics()

	details := map[string]any{
		"state":                state.String(),
		"total_requests":       metrics.TotalRequests,
		"failed_requests":      metrics.FailedRequests,
		"error_rate":           metrics.ErrorRate,
		"consecutive_failures": metrics.ConsecutiveFailures,
	}

	switch state {
	case resilience.StateOpen:
		return Unhealthy(
			fmt.Sprintf("circuit open after %d consecutive failures", metrics.ConsecutiveFailures),
			resilience.ErrCircuitOpen,
		).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit half-open, probing recovery").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}
