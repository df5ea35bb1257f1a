package stream

import "time"

// subscription is one logical channel registration. The subscribe and
// unsubscribe payloads are adapter-defined and opaque: they are stored
// verbatim and replayed verbatim on resubscription.
type subscription struct {
	id          string
	channel     string
	subscribe   []byte
	unsubscribe []byte
	handler     func(Message)
	active      bool
	createdAt   time.Time
}
