package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/streamcore/stream"
)

// StreamChecker reports the health of a websocket stream manager.
//
// A disconnected manager reports unhealthy. A connected manager with
// payloads still queued for delivery reports degraded, since subscriptions
// have not yet been fully established.
type StreamChecker struct {
	name    string
	manager *stream.Manager
}

// NewStreamChecker creates a checker for the given stream manager.
func NewStreamChecker(name string, manager *stream.Manager) *StreamChecker {
	return &StreamChecker{name: name, manager: manager}
}

// Name returns the name of this checker.
func (s *StreamChecker) Name() string {
	return s.name
}

// Check reports the manager's connection state.
func (s *StreamChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	metrics := s.manager.Metrics()

	details := map[string]any{
		"connected":        metrics.Connected,
		"subscriptions":    metrics.Subscriptions,
		"pending_payloads": metrics.PendingPayloads,
		"resubscriptions":  metrics.Resubscriptions,
	}

	if !metrics.Connected {
		return Unhealthy("stream disconnected", stream.ErrNotConnected).WithDetails(details)
	}

	if metrics.PendingPayloads > 0 {
		return Degraded(
			fmt.Sprintf("%d subscription payloads pending", metrics.PendingPayloads),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("connected with %d subscriptions", metrics.Subscriptions),
	).WithDetails(details)
}
