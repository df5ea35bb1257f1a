package resilience

import "sync"

// Unsubscribe removes a previously registered event handler.
// Calling it more than once is a no-op.
type Unsubscribe func()

// handlerSet is a small multicast callback registry. Registration returns an
// Unsubscribe handle; snapshot returns the current handlers so they can be
// invoked without holding the registry lock.
type handlerSet[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]T
}

func (s *handlerSet[T]) add(h T) Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers == nil {
		s.handlers = make(map[int]T)
	}
	id := s.nextID
	s.nextID++
	s.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *handlerSet[T]) snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.handlers) == 0 {
		return nil
	}
	out := make([]T, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	return out
}

func (s *handlerSet[T]) clear() {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
}
