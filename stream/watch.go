package stream

import (
	"sync"
	"sync/atomic"
)

// Stream is a lazy, infinite sequence of messages for one subscription,
// produced by Manager.Watch. It is not restartable: once closed, it is done.
//
// Closing the stream (explicitly, or via the Watch context) triggers the
// underlying unsubscribe exactly once, even if no message was ever received.
// An unclosed stream leaks its registry entry and buffer.
type Stream struct {
	msgs        chan Message
	done        chan struct{}
	unsubscribe func()

	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

func newStream(buffer int) *Stream {
	return &Stream{
		msgs: make(chan Message, buffer),
		done: make(chan struct{}),
	}
}

// Messages returns the receive channel. It is closed when the stream is
// closed; within one stream, messages arrive in wire order.
func (s *Stream) Messages() <-chan Message {
	return s.msgs
}

// deliver enqueues one message without blocking the router. When the buffer
// is full the newest message is dropped and counted: a slow consumer stalls
// only its own stream, never the shared read loop.
func (s *Stream) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.msgs <- msg:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many messages were discarded because the consumer fell
// behind the buffer.
func (s *Stream) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the stream and unsubscribes the underlying channel. It is
// idempotent; cleanup runs exactly once.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.msgs)
	close(s.done)
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
