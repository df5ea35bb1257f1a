// Package resilience provides resilience patterns for exchange-facing calls.
//
// This package is the request-path half of the streaming core: every
// exchange adapter routes its REST and RPC calls through it. The patterns
// can be composed together to build robust execution pipelines without the
// adapter knowing anything about failure handling.
//
// # Patterns
//
// The package provides the following resilience patterns:
//
//   - Circuit Breaker: Stops calling a failing backend after rolling
//     failure/error-rate thresholds trip, probing it again after a cooldown.
//
//   - Retry: Automatically retries failed operations with configurable
//     backoff strategies (exponential, linear, constant).
//
//   - Rate Limiter: Weighted token bucket that throttles outgoing requests
//     against exchange-imposed limits. It delays, it never rejects.
//
//   - Bulkhead: Bounds concurrent and queued work against one backend so a
//     slow resource cannot exhaust the caller.
//
//   - Timeout: Abandons the wait for operations that exceed a deadline.
//
// # Usage
//
// Each pattern can be used independently or composed with an Executor:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    ResetTimeout:     time.Minute,
//	})
//
//	rl, _ := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    MaxTokens: 10,
//	    Window:    time.Second,
//	    Weights:   map[string]float64{"createOrder": 5},
//	})
//
//	ex := resilience.NewExecutor[Quote](
//	    resilience.WithCircuitBreaker[Quote](cb),
//	    resilience.WithRetry[Quote](resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithRateLimiter[Quote](rl),
//	    resilience.WithFallback[Quote](lastGoodQuote),
//	)
//
//	quote, err := ex.Execute(ctx, "getQuote", fetchQuote)
//
// One breaker, bulkhead, or limiter instance is scoped to one logical
// resource. Sharing an instance across unrelated resources lets a trip or a
// queue for one incorrectly starve the others.
package resilience
