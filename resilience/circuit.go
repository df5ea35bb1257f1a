package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the resource recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
//
// A breaker trips from closed to open when, with at least
// MinimumRequestVolume outcomes inside TimeWindow, either the consecutive
// failure count reaches FailureThreshold or the windowed error rate reaches
// ErrorThresholdPercentage.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive failure count that trips the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes required in
	// half-open state before the circuit closes.
	// Default: 1
	SuccessThreshold int

	// TimeWindow is the rolling window over which request outcomes are
	// considered current. Older outcomes are pruned and never influence the
	// trip decision.
	// Default: 60 seconds
	TimeWindow time.Duration

	// ResetTimeout is how long an open circuit waits before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// MinimumRequestVolume is the windowed outcome count below which the
	// thresholds never trip. Zero means the very first outcome alone can trip
	// the circuit when it meets ErrorThresholdPercentage.
	MinimumRequestVolume int

	// ErrorThresholdPercentage is the windowed failure fraction (0-1) that
	// trips the circuit once MinimumRequestVolume is met.
	// Default: 0.5
	ErrorThresholdPercentage float64

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

type outcome struct {
	at      time.Time
	failure bool
}

// CircuitBreaker implements the circuit breaker pattern with a rolling
// time-window trip condition.
//
// One breaker instance guards one logical resource. Sharing an instance
// across unrelated resources lets a trip for one starve the others.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                   sync.Mutex
	state                State
	outcomes             []outcome
	consecutiveFailures  int
	consecutiveSuccesses int
	lastStateChange      time.Time
	resetTimer           *time.Timer
	destroyed            bool

	stateChangeHandlers handlerSet[func(from, to State)]
	openHandlers        handlerSet[func()]
	halfOpenHandlers    handlerSet[func()]
	closeHandlers       handlerSet[func()]
	successHandlers     handlerSet[func()]
	failureHandlers     handlerSet[func(error)]
	rejectHandlers      handlerSet[func()]
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.TimeWindow <= 0 {
		config.TimeWindow = 60 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.MinimumRequestVolume < 0 {
		config.MinimumRequestVolume = 0
	}
	if config.ErrorThresholdPercentage <= 0 || config.ErrorThresholdPercentage > 1 {
		config.ErrorThresholdPercentage = 0.5
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs the operation through the circuit breaker.
//
// While open, the operation is never invoked and the call returns a
// *CircuitOpenError. A call admitted before a trip still records its outcome
// when it completes, but cannot change state.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit to closed and clears all counters, the rolling
// window, and any pending reset timer.
func (cb *CircuitBreaker) Reset() {
	var fire []func()

	cb.mu.Lock()
	if cb.destroyed {
		cb.mu.Unlock()
		return
	}
	cb.stopTimerLocked()
	cb.outcomes = nil
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	if cb.state != StateClosed {
		fire = cb.transitionLocked(StateClosed)
	}
	cb.mu.Unlock()

	fireAll(fire)
}

// ForceOpen opens the circuit as an operational override. No reset timer is
// scheduled; the circuit stays open until Reset or ForceClosed.
func (cb *CircuitBreaker) ForceOpen() {
	var fire []func()

	cb.mu.Lock()
	if cb.destroyed {
		cb.mu.Unlock()
		return
	}
	cb.stopTimerLocked()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	if cb.state != StateOpen {
		fire = cb.transitionLocked(StateOpen)
	}
	cb.mu.Unlock()

	fireAll(fire)
}

// ForceClosed closes the circuit as an operational override, bypassing the
// half-open probe sequence.
func (cb *CircuitBreaker) ForceClosed() {
	var fire []func()

	cb.mu.Lock()
	if cb.destroyed {
		cb.mu.Unlock()
		return
	}
	cb.stopTimerLocked()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	if cb.state != StateClosed {
		fire = cb.transitionLocked(StateClosed)
	}
	cb.mu.Unlock()

	fireAll(fire)
}

// Destroy cancels the pending reset timer and detaches all observers. The
// breaker is terminal afterwards: Execute returns ErrBreakerDestroyed.
func (cb *CircuitBreaker) Destroy() {
	cb.mu.Lock()
	cb.stopTimerLocked()
	cb.destroyed = true
	cb.mu.Unlock()

	cb.stateChangeHandlers.clear()
	cb.openHandlers.clear()
	cb.halfOpenHandlers.clear()
	cb.closeHandlers.clear()
	cb.successHandlers.clear()
	cb.failureHandlers.clear()
	cb.rejectHandlers.clear()
}

// OnStateChange registers a handler invoked on every state transition.
func (cb *CircuitBreaker) OnStateChange(h func(from, to State)) Unsubscribe {
	return cb.stateChangeHandlers.add(h)
}

// OnOpen registers a handler invoked when the circuit opens.
func (cb *CircuitBreaker) OnOpen(h func()) Unsubscribe { return cb.openHandlers.add(h) }

// OnHalfOpen registers a handler invoked when the circuit starts probing.
func (cb *CircuitBreaker) OnHalfOpen(h func()) Unsubscribe { return cb.halfOpenHandlers.add(h) }

// OnClose registers a handler invoked when the circuit closes.
func (cb *CircuitBreaker) OnClose(h func()) Unsubscribe { return cb.closeHandlers.add(h) }

// OnSuccess registers a handler invoked for every successful outcome.
func (cb *CircuitBreaker) OnSuccess(h func()) Unsubscribe { return cb.successHandlers.add(h) }

// OnFailure registers a handler invoked for every failed outcome.
func (cb *CircuitBreaker) OnFailure(h func(error)) Unsubscribe { return cb.failureHandlers.add(h) }

// OnReject registers a handler invoked when an open circuit rejects a call.
func (cb *CircuitBreaker) OnReject(h func()) Unsubscribe { return cb.rejectHandlers.add(h) }

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	if cb.destroyed {
		cb.mu.Unlock()
		return ErrBreakerDestroyed
	}
	state := cb.state
	cb.mu.Unlock()

	if state == StateOpen {
		for _, h := range cb.rejectHandlers.snapshot() {
			h()
		}
		return &CircuitOpenError{State: state}
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	failed := cb.config.IsFailure(err)

	var fire []func()

	cb.mu.Lock()
	if cb.destroyed {
		cb.mu.Unlock()
		return
	}

	now := time.Now()
	cb.pruneLocked(now)
	cb.outcomes = append(cb.outcomes, outcome{at: now, failure: failed})

	if failed {
		for _, h := range cb.failureHandlers.snapshot() {
			h := h
			fire = append(fire, func() { h(err) })
		}
	} else {
		for _, h := range cb.successHandlers.snapshot() {
			fire = append(fire, h)
		}
	}

	switch cb.state {
	case StateClosed:
		if failed {
			cb.consecutiveFailures++
			if cb.shouldTripLocked() {
				fire = append(fire, cb.tripLocked()...)
			}
		} else {
			cb.consecutiveFailures = 0
		}

	case StateHalfOpen:
		if failed {
			// Any single probe failure returns to open, regardless of
			// prior successes in this half-open window.
			fire = append(fire, cb.tripLocked()...)
		} else {
			cb.consecutiveSuccesses++
			if cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
				cb.consecutiveFailures = 0
				cb.consecutiveSuccesses = 0
				fire = append(fire, cb.transitionLocked(StateClosed)...)
			}
		}

	case StateOpen:
		// A call admitted before the trip completed after it. The outcome is
		// recorded in the window but causes no transition.
	}
	cb.mu.Unlock()

	fireAll(fire)
}

// shouldTripLocked evaluates the trip condition after a closed-state outcome.
// The outcome that triggered the evaluation is already counted in the window.
func (cb *CircuitBreaker) shouldTripLocked() bool {
	total := len(cb.outcomes)
	if total < cb.config.MinimumRequestVolume {
		return false
	}
	if cb.consecutiveFailures >= cb.config.FailureThreshold {
		return true
	}

	failures := 0
	for _, o := range cb.outcomes {
		if o.failure {
			failures++
		}
	}
	return float64(failures)/float64(total) >= cb.config.ErrorThresholdPercentage
}

// tripLocked transitions to open and schedules the one-shot probe timer.
func (cb *CircuitBreaker) tripLocked() []func() {
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	fire := cb.transitionLocked(StateOpen)

	cb.stopTimerLocked()
	cb.resetTimer = time.AfterFunc(cb.config.ResetTimeout, cb.beginProbe)
	return fire
}

// beginProbe is the reset timer callback: open to half-open. It cancels no
// in-flight requests, only changes state for subsequent calls.
func (cb *CircuitBreaker) beginProbe() {
	var fire []func()

	cb.mu.Lock()
	if cb.destroyed || cb.state != StateOpen {
		cb.mu.Unlock()
		return
	}
	cb.resetTimer = nil
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	fire = cb.transitionLocked(StateHalfOpen)
	cb.mu.Unlock()

	fireAll(fire)
}

// transitionLocked changes state and returns the notification callbacks to
// fire after the lock is released.
func (cb *CircuitBreaker) transitionLocked(to State) []func() {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	cb.lastStateChange = time.Now()

	var fire []func()
	for _, h := range cb.stateChangeHandlers.snapshot() {
		h := h
		fire = append(fire, func() { h(from, to) })
	}

	var set *handlerSet[func()]
	switch to {
	case StateOpen:
		set = &cb.openHandlers
	case StateHalfOpen:
		set = &cb.halfOpenHandlers
	case StateClosed:
		set = &cb.closeHandlers
	}
	if set != nil {
		for _, h := range set.snapshot() {
			fire = append(fire, h)
		}
	}
	return fire
}

func (cb *CircuitBreaker) stopTimerLocked() {
	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
}

func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.config.TimeWindow)
	i := 0
	for i < len(cb.outcomes) && !cb.outcomes[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		cb.outcomes = append(cb.outcomes[:0], cb.outcomes[i:]...)
	}
}

func fireAll(fs []func()) {
	for _, f := range fs {
		f()
	}
}

// Metrics returns a snapshot of the breaker over its rolling window.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked(time.Now())

	failures := 0
	for _, o := range cb.outcomes {
		if o.failure {
			failures++
		}
	}
	total := len(cb.outcomes)

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failures) / float64(total)
	}

	return CircuitBreakerMetrics{
		State:                cb.state,
		TotalRequests:        total,
		SuccessfulRequests:   total - failures,
		FailedRequests:       failures,
		ErrorRate:            errorRate,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		LastStateChange:      cb.lastStateChange,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics over the
// configured time window.
type CircuitBreakerMetrics struct {
	State                State
	TotalRequests        int
	SuccessfulRequests   int
	FailedRequests       int
	ErrorRate            float64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastStateChange      time.Time
}
