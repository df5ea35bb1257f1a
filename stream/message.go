package stream

import (
	"encoding/json"
	"time"
)

// Message is one parsed inbound frame. Channel drives routing; everything
// else is carried for the consumer. Payloads stay opaque so exchange-specific
// schemas live in the adapter, not here.
type Message struct {
	Type    string          `json:"type,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Seq is an optional server-side sequence id, carried for observability.
	// It is never used for reordering.
	Seq int64 `json:"seq,omitempty"`

	ReceivedAt time.Time `json:"-"`
	Raw        []byte    `json:"-"`
}

// parseMessage decodes a frame into a Message. Frames that are not JSON
// objects still flow through with only Raw and ReceivedAt set, so routing
// treats them as channel-less diagnostics rather than errors.
func parseMessage(data []byte) Message {
	msg := Message{
		ReceivedAt: time.Now(),
		Raw:        data,
	}
	_ = json.Unmarshal(data, &msg)
	return msg
}
