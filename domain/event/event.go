// Package event defines the named events exchanged over a live channel.
// Outbound events push server state to a connected client; the only inbound
// event is the seen acknowledgement.
package event

import (
	"encoding/json"

	"github.com/google/uuid"
)

type Name string

const (
	// Outbound
	NewMessage   Name = "newMessage"
	MessagesSeen Name = "messagesSeen"
	OnlineUsers  Name = "onlineUsers"

	// Inbound
	MarkSeen Name = "markSeen"
)

// Envelope is the wire format of every channel event.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SeenPayload lists the ids whose seen flag flipped. It is applied
// idempotently on both sides, keyed by message id, never by position.
type SeenPayload struct {
	IDs []uuid.UUID `json:"ids"`
}

// OnlinePayload carries the full current online set on every presence change.
type OnlinePayload struct {
	UserIDs []string `json:"userIds"`
}
