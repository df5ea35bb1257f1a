package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/streamcore/observe"
)

// ManagerConfig configures a websocket manager.
type ManagerConfig struct {
	// WatchBuffer is the per-stream message buffer for Watch. When a
	// consumer falls this far behind, newer messages for that stream are
	// dropped and counted.
	// Default: 256
	WatchBuffer int

	// Logger receives routing and resubscription logs. Nil discards them.
	Logger observe.Logger
}

// Manager multiplexes logical channel subscriptions over a single Client.
// It owns the subscription registry exclusively: subscribing while
// disconnected queues the payload for the next (re)connect, and after every
// reconnect all still-active subscriptions are replayed in registration
// order. One Manager wraps one connection; deployments needing more
// connections construct more Managers.
type Manager struct {
	client *Client
	config ManagerConfig
	logger observe.Logger

	onUnhandled func(Message)
	onError     func(error)

	mu      sync.Mutex
	subs    map[string]*subscription
	order   []string
	pending [][]byte
	closed  bool

	resubscribing  atomic.Bool
	resubPending   atomic.Bool
	resubscription int64
}

// NewManager creates a manager over the given client. The manager installs
// the client's message, error, and reconnect handlers; nothing else may use
// that client.
func NewManager(client *Client, config ManagerConfig) *Manager {
	// Apply defaults
	if config.WatchBuffer <= 0 {
		config.WatchBuffer = 256
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	m := &Manager{
		client: client,
		config: config,
		logger: logger,
		subs:   make(map[string]*subscription),
	}

	client.OnMessage(m.route)
	client.OnReconnect(m.resubscribe)
	client.OnError(func(err error) {
		m.mu.Lock()
		onError := m.onError
		m.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	})

	return m
}

// OnUnhandled registers a handler for frames that match no active
// subscription. Such frames are dropped after this diagnostic hook fires.
func (m *Manager) OnUnhandled(fn func(Message)) {
	m.mu.Lock()
	m.onUnhandled = fn
	m.mu.Unlock()
}

// OnError registers a handler for transport errors, handler panics, and
// resubscription failures.
func (m *Manager) OnError(fn func(error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// Connect connects the underlying client and flushes payloads queued while
// disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.mu.Unlock()

	if err := m.client.Connect(ctx); err != nil {
		return err
	}
	m.flushPending(ctx)
	return nil
}

// Subscribe registers interest in a channel. The subscribe payload is sent
// immediately when connected, otherwise queued for the next (re)connect; the
// returned id is valid either way, so callers never block on connectivity.
// The unsubscribe payload may be nil for channels without an explicit
// unsubscribe protocol.
func (m *Manager) Subscribe(channel string, subscribePayload, unsubscribePayload []byte, handler func(Message)) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}

	sub := &subscription{
		id:          uuid.NewString(),
		channel:     channel,
		subscribe:   subscribePayload,
		unsubscribe: unsubscribePayload,
		handler:     handler,
		active:      true,
		createdAt:   time.Now(),
	}
	m.subs[sub.id] = sub
	m.order = append(m.order, sub.id)
	m.mu.Unlock()

	if subscribePayload != nil {
		if !m.client.IsConnected() {
			m.enqueue(subscribePayload)
		} else if err := m.client.Send(context.Background(), subscribePayload); err != nil {
			// The connection raced away; queue so the next connect replays it.
			m.enqueue(subscribePayload)
		}
	}

	m.logger.Debug(context.Background(), "subscribed",
		observe.Field{Key: "channel", Value: channel},
		observe.Field{Key: "subscription_id", Value: sub.id},
	)
	return sub.id, nil
}

// Unsubscribe deactivates and removes a subscription, sending its
// unsubscribe payload if one was registered and the connection is up.
// Unknown ids are a no-op.
func (m *Manager) Unsubscribe(id string) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	sub.active = false
	delete(m.subs, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.logger.Debug(context.Background(), "unsubscribed",
		observe.Field{Key: "channel", Value: sub.channel},
		observe.Field{Key: "subscription_id", Value: id},
	)

	if sub.unsubscribe != nil && m.client.IsConnected() {
		return m.client.Send(context.Background(), sub.unsubscribe)
	}
	return nil
}

// Watch subscribes to a channel and returns its messages as a stream.
// Closing the stream, or cancelling ctx, unsubscribes exactly once.
func (m *Manager) Watch(ctx context.Context, channel string, subscribePayload, unsubscribePayload []byte) (*Stream, error) {
	s := newStream(m.config.WatchBuffer)

	id, err := m.Subscribe(channel, subscribePayload, unsubscribePayload, s.deliver)
	if err != nil {
		return nil, err
	}
	s.unsubscribe = func() { _ = m.Unsubscribe(id) }

	if ctx != nil && ctx.Done() != nil {
		go func() {
			// An early Close releases the watcher; it must not linger for
			// the lifetime of a long-lived caller context.
			select {
			case <-ctx.Done():
				s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// route dispatches one inbound frame to every active subscription whose
// channel matches exactly. It runs on the client's read goroutine, so
// per-subscription delivery order equals wire order.
func (m *Manager) route(data []byte) {
	msg := parseMessage(data)

	m.mu.Lock()
	var matched []*subscription
	for _, id := range m.order {
		sub := m.subs[id]
		if sub != nil && sub.active && sub.channel == msg.Channel {
			matched = append(matched, sub)
		}
	}
	onUnhandled := m.onUnhandled
	m.mu.Unlock()

	if len(matched) == 0 {
		if onUnhandled != nil {
			onUnhandled(msg)
		}
		return
	}

	for _, sub := range matched {
		m.dispatch(sub, msg)
	}
}

// dispatch invokes one handler, containing its panic so a broken consumer
// cannot take down routing for the other subscriptions.
func (m *Manager) dispatch(sub *subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("stream: handler panic on channel %q: %v", sub.channel, r)
			m.logger.Error(context.Background(), "handler panic",
				observe.Field{Key: "channel", Value: sub.channel},
				observe.Field{Key: "subscription_id", Value: sub.id},
				observe.Field{Key: "panic", Value: fmt.Sprint(r)},
			)
			m.mu.Lock()
			onError := m.onError
			m.mu.Unlock()
			if onError != nil {
				onError(err)
			}
		}
	}()
	sub.handler(msg)
}

// resubscribe restores streaming state after a reconnect. Passes never
// overlap: a reconnect that lands while a pass is running marks a rerun, and
// the running goroutine replays again before releasing the guard, so the
// newest connection always gets a full replay even under flapping.
func (m *Manager) resubscribe() {
	m.resubPending.Store(true)
	for m.resubscribing.CompareAndSwap(false, true) {
		for m.resubPending.CompareAndSwap(true, false) {
			m.resubscribePass()
		}
		m.resubscribing.Store(false)
		// A reconnect may have landed between the last pass and the guard
		// release; re-enter rather than strand it until the next reconnect.
		if !m.resubPending.Load() {
			return
		}
	}
}

// resubscribePass flushes queued payloads in enqueue order, then resends
// every still-active subscription's original subscribe payload in
// registration order. Resending is best-effort per subscription.
func (m *Manager) resubscribePass() {
	ctx := context.Background()
	m.flushPending(ctx)

	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.order))
	for _, id := range m.order {
		if sub := m.subs[id]; sub != nil && sub.active {
			subs = append(subs, sub)
		}
	}
	m.resubscription++
	onError := m.onError
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.subscribe == nil {
			continue
		}
		if err := m.client.Send(ctx, sub.subscribe); err != nil {
			m.logger.Warn(ctx, "resubscribe failed",
				observe.Field{Key: "channel", Value: sub.channel},
				observe.Field{Key: "subscription_id", Value: sub.id},
				observe.Field{Key: "error", Value: err.Error()},
			)
			if onError != nil {
				onError(fmt.Errorf("stream: resubscribe %q: %w", sub.channel, err))
			}
		}
	}

	m.logger.Info(ctx, "resubscription complete",
		observe.Field{Key: "subscriptions", Value: len(subs)},
	)
}

func (m *Manager) enqueue(payload []byte) {
	m.mu.Lock()
	m.pending = append(m.pending, payload)
	m.mu.Unlock()
}

func (m *Manager) flushPending(ctx context.Context) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for i, payload := range pending {
		if err := m.client.Send(ctx, payload); err != nil {
			// Keep the unsent tail for the next connect.
			m.mu.Lock()
			m.pending = append(pending[i:], m.pending...)
			m.mu.Unlock()
			return
		}
	}
}

// Metrics returns a snapshot of the manager's state.
func (m *Manager) Metrics() ManagerMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerMetrics{
		Connected:       m.client.IsConnected(),
		Subscriptions:   len(m.subs),
		PendingPayloads: len(m.pending),
		Resubscriptions: m.resubscription,
	}
}

// ManagerMetrics contains manager statistics.
type ManagerMetrics struct {
	Connected       bool
	Subscriptions   int
	PendingPayloads int
	Resubscriptions int64
}

// Close unsubscribes everything and closes the underlying client.
// It is idempotent and terminal.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := make([]*subscription, 0, len(m.order))
	for _, id := range m.order {
		if sub := m.subs[id]; sub != nil {
			subs = append(subs, sub)
			sub.active = false
		}
	}
	m.subs = make(map[string]*subscription)
	m.order = nil
	m.pending = nil
	m.mu.Unlock()

	if m.client.IsConnected() {
		for _, sub := range subs {
			if sub.unsubscribe != nil {
				_ = m.client.Send(context.Background(), sub.unsubscribe)
			}
		}
	}
	return m.client.Close()
}
