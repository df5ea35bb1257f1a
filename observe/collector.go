package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/streamcore/resilience"
)

// Collector bridges resilience component events into OpenTelemetry
// instruments, namespaced per logical resource. One collector serves any
// number of breakers, limiters, and executors.
type Collector struct {
	transitions metric.Int64Counter
	rejects     metric.Int64Counter
	outcomes    metric.Int64Counter
	waits       metric.Float64Histogram
	failures    metric.Int64Counter
}

// NewCollector creates a collector with instruments registered on the meter.
func NewCollector(meter metric.Meter) (*Collector, error) {
	transitions, err := meter.Int64Counter(
		"resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	rejects, err := meter.Int64Counter(
		"resilience.breaker.rejects",
		metric.WithDescription("Calls rejected by an open circuit"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"resilience.breaker.outcomes",
		metric.WithDescription("Protected call outcomes observed by the breaker"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	waits, err := meter.Float64Histogram(
		"resilience.ratelimit.wait_ms",
		metric.WithDescription("Time spent waiting for rate limiter tokens"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"resilience.executor.failures",
		metric.WithDescription("Terminal executor failures by pipeline stage"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &Collector{
		transitions: transitions,
		rejects:     rejects,
		outcomes:    outcomes,
		waits:       waits,
		failures:    failures,
	}, nil
}

// WatchBreaker subscribes to a breaker's events and records them under the
// given resource name. The returned handle detaches every handler; call it
// before destroying the breaker.
func (c *Collector) WatchBreaker(resource string, cb *resilience.CircuitBreaker) resilience.Unsubscribe {
	res := attribute.String("resource", resource)

	unsubs := []resilience.Unsubscribe{
		cb.OnStateChange(func(from, to resilience.State) {
			c.transitions.Add(context.Background(), 1, metric.WithAttributes(res,
				attribute.String("from", from.String()),
				attribute.String("to", to.String()),
			))
		}),
		cb.OnReject(func() {
			c.rejects.Add(context.Background(), 1, metric.WithAttributes(res))
		}),
		cb.OnSuccess(func() {
			c.outcomes.Add(context.Background(), 1, metric.WithAttributes(res,
				attribute.String("outcome", "success")))
		}),
		cb.OnFailure(func(err error) {
			c.outcomes.Add(context.Background(), 1, metric.WithAttributes(res,
				attribute.String("outcome", "failure")))
		}),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// RateLimiterWaitHook returns a function for RateLimiterConfig.OnWait that
// records throttle delays under the given resource name.
func (c *Collector) RateLimiterWaitHook(resource string) func(operation string, delay time.Duration) {
	res := attribute.String("resource", resource)
	return func(operation string, delay time.Duration) {
		c.waits.Record(context.Background(), float64(delay.Milliseconds()),
			metric.WithAttributes(res, attribute.String("operation", operation)))
	}
}

// FailureHook returns a function for the executor's WithOnFailure option
// that counts terminal failures by stage under the given resource name.
func (c *Collector) FailureHook(resource string) func(operation string, stage resilience.FailureStage, err error) {
	res := attribute.String("resource", resource)
	return func(operation string, stage resilience.FailureStage, err error) {
		c.failures.Add(context.Background(), 1, metric.WithAttributes(res,
			attribute.String("operation", operation),
			attribute.String("stage", string(stage)),
		))
	}
}
