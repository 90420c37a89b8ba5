// Package client models the state a connected client keeps between pushes:
// the open conversation, the selected counterpart and the per-counterpart
// unseen counters. The counters are a cached projection of the store and
// can always be rebuilt from it; every update here is idempotent and keyed
// by message id, never by position.
package client

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"pingr/domain/chat"
)

type Session struct {
	ViewerID string
	Selected string
	Messages []chat.Message

	unseen  map[string]int
	applied map[uuid.UUID]struct{}
}

func NewSession(viewerID string) *Session {
	return &Session{
		ViewerID: viewerID,
		unseen:   make(map[string]int),
		applied:  make(map[uuid.UUID]struct{}),
	}
}

// Open replaces the session's conversation wholesale with the fetched list
// and zeroes the counterpart's counter. It returns the ids the server must
// still be told about (receiver-side messages fetched as unseen), so the
// caller can fire the markSeen acknowledgement; the local flags flip
// immediately.
func (s *Session) Open(counterpartID string, messages []chat.Message) []uuid.UUID {
	s.Selected = counterpartID
	s.Messages = messages
	delete(s.unseen, counterpartID)

	var pending []uuid.UUID
	for i := range s.Messages {
		s.applied[s.Messages[i].ID] = struct{}{}
		if s.Messages[i].ReceiverID == s.ViewerID && !s.Messages[i].Seen {
			pending = append(pending, s.Messages[i].ID)
			s.Messages[i].Seen = true
		}
	}
	return pending
}

// CloseConversation drops the selection; the next live message from any
// counterpart counts as unseen again.
func (s *Session) CloseConversation() {
	s.Selected = ""
	s.Messages = nil
}

// ApplyNew handles a pushed message. While its conversation is open the
// message lands already seen and the caller must acknowledge the returned
// true by sending markSeen upstream; otherwise the sender's counter
// increments by exactly one. Re-delivery of an id already applied changes
// nothing, so a reconnect replaying pushes cannot double-count.
func (s *Session) ApplyNew(message chat.Message) (ackSeen bool) {
	if _, seen := s.applied[message.ID]; seen {
		return false
	}
	s.applied[message.ID] = struct{}{}

	if message.SenderID == s.Selected {
		message.Seen = true
		s.Messages = append(s.Messages, message)
		return true
	}

	if message.ReceiverID == s.ViewerID {
		s.unseen[message.SenderID]++
	}
	return false
}

// ApplyOwn appends the viewer's own message once the server confirmed it.
// Sends are not optimistic: a failed send never touches the session.
func (s *Session) ApplyOwn(message chat.Message) {
	if _, seen := s.applied[message.ID]; seen {
		return
	}
	s.applied[message.ID] = struct{}{}
	s.Messages = append(s.Messages, message)
}

// ApplySeen flips the seen ticks for the given ids. Unknown ids are
// ignored; flipping an already-seen message is a no-op.
func (s *Session) ApplySeen(ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	wanted := lo.SliceToMap(ids, func(id uuid.UUID) (uuid.UUID, struct{}) { return id, struct{}{} })
	for i := range s.Messages {
		if _, ok := wanted[s.Messages[i].ID]; ok {
			s.Messages[i].Seen = true
		}
	}
}

// Reconcile replaces the whole projection with counts re-derived from the
// store, preserving the invariant that the open conversation counts zero.
func (s *Session) Reconcile(counts map[string]int) {
	s.unseen = make(map[string]int, len(counts))
	for counterpartID, count := range counts {
		if counterpartID == s.Selected {
			continue
		}
		s.unseen[counterpartID] = count
	}
}

func (s *Session) UnseenFor(counterpartID string) int {
	return s.unseen[counterpartID]
}

// UnseenCounts exposes a copy of the projection for badge rendering.
func (s *Session) UnseenCounts() map[string]int {
	out := make(map[string]int, len(s.unseen))
	for id, count := range s.unseen {
		out[id] = count
	}
	return out
}
