// Package presence tracks which users currently hold a live channel.
// The registry is process-wide mutable state rebuilt from zero on restart:
// it answers "is this user reachable right now", nothing more.
package presence

import (
	"log/slog"
	"sort"
	"sync"

	"pingr/domain/event"
)

// Channel is one user's live connection. Send must never block the caller:
// implementations queue or drop, they do not wait for the peer.
type Channel interface {
	Send(name event.Name, payload any) error
	Close() error
}

type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		log:      log,
	}
}

// Register attaches a channel to a user, replacing and closing any previous
// one. The swap happens under the lock so no reader can observe two channels
// for the same user; the old handle is closed outside it so a slow Close
// cannot stall lookups. Every registration re-broadcasts the online set.
func (r *Registry) Register(userID string, ch Channel) {
	r.mu.Lock()
	previous := r.channels[userID]
	r.channels[userID] = ch
	r.mu.Unlock()

	if previous != nil {
		r.log.Info("Replacing live channel", "user_id", userID)
		_ = previous.Close()
	}
	r.broadcastOnlineSet()
}

// Unregister removes the mapping only if ch is still the current channel for
// the user. A stale pump cleaning up after being replaced must not tear down
// the connection that replaced it. Safe to call when nothing is registered.
func (r *Registry) Unregister(userID string, ch Channel) {
	r.mu.Lock()
	current, ok := r.channels[userID]
	if ok && current == ch {
		delete(r.channels, userID)
	}
	r.mu.Unlock()

	if ok && current == ch {
		r.broadcastOnlineSet()
	}
}

func (r *Registry) Lookup(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[userID]
	return ch, ok
}

// OnlineSet returns the ids of every user holding a channel, sorted for
// stable output.
func (r *Registry) OnlineSet() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// broadcastOnlineSet pushes the full online set to every registered channel.
// Delivery is best-effort: one failing channel neither blocks the others nor
// gets unregistered here, its own pump owns that decision.
func (r *Registry) broadcastOnlineSet() {
	ids := r.OnlineSet()

	r.mu.RLock()
	targets := make(map[string]Channel, len(r.channels))
	for id, ch := range r.channels {
		targets[id] = ch
	}
	r.mu.RUnlock()

	for id, ch := range targets {
		if err := ch.Send(event.OnlineUsers, event.OnlinePayload{UserIDs: ids}); err != nil {
			r.log.Debug("Online set push failed", "user_id", id, "error", err)
		}
	}
}
