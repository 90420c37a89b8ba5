// Package chat contains the core concepts of the direct-messaging system.
// Messages are created once and only their seen flag may change afterwards,
// and only from false to true.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single direct message between two users.
// Text and Image may coexist; at least one of them is always present.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PairKey gives the canonical identifier of the conversation between two
// users, independent of direction. Both orders of the same pair map to the
// same key, which is what the storage layer scans on.
func PairKey(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}
