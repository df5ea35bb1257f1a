package health

import (
	"context"
	"time"
)

// Checker reports the health of one adapter component: a circuit breaker
// guarding REST calls, a websocket stream manager, a downstream dependency.
type Checker interface {
	// Name identifies the component, e.g. "kraken-rest" or "kraken-ws".
	Name() string

	// Check observes the component and reports its current state.
	Check(ctx context.Context) Result
}

// Status classifies a component's condition.
type Status int

const (
	// StatusHealthy means the component is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded means the component works with reduced capability, such
	// as a half-open breaker probing recovery or a stream with subscription
	// payloads still queued.
	StatusDegraded
	// StatusUnhealthy means the component cannot serve traffic.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if s < StatusHealthy || s > StatusUnhealthy {
		return "unknown"
	}
	return statusNames[s]
}

// Result is one observation of a component.
type Result struct {
	Status Status

	// Message is a short operator-facing summary, e.g. "circuit open after
	// 5 consecutive failures".
	Message string

	// Details carries a metrics snapshot for the detailed HTTP surface.
	Details map[string]any

	// Duration is how long the observation took.
	Duration time.Duration

	// Timestamp is when the observation was made.
	Timestamp time.Time

	// Error is the underlying cause for unhealthy results.
	Error error
}

// Healthy builds a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds an unhealthy result carrying its cause.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails attaches a metrics snapshot to the result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration records how long the observation took.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// CheckerFunc adapts a plain function into a named Checker, for components
// that do not warrant a dedicated checker type.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a Checker reporting under name.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the component.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check invokes the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}
