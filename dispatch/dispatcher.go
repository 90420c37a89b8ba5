// Package dispatch pushes freshly persisted state to live channels.
// The store is the source of truth; every push here is an optimization for
// immediacy and is allowed to fail silently. A disconnected receiver simply
// reconciles on its next conversation fetch.
package dispatch

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pingr/domain/chat"
	"pingr/domain/event"
	"pingr/observability"
	"pingr/presence"
)

type Dispatcher struct {
	registry *presence.Registry
	monitor  *observability.Monitor
	log      *slog.Logger
}

func NewDispatcher(registry *presence.Registry, monitor *observability.Monitor, log *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, monitor: monitor, log: log}
}

// NewMessage pushes a persisted message to its receiver, if connected.
// Callers must only invoke this after the durable write was acknowledged;
// a message that might not be persisted must never reach a channel.
func (d *Dispatcher) NewMessage(message chat.Message) {
	ch, ok := d.registry.Lookup(message.ReceiverID)
	if !ok {
		return
	}
	if err := ch.Send(event.NewMessage, message); err != nil {
		d.monitor.IncPushFailed()
		d.log.Warn("Message push failed, receiver will reconcile on fetch",
			"message_id", message.ID,
			"receiver_id", message.ReceiverID,
			"error", err)
		return
	}
	d.monitor.IncPushed()
}

// SeenReceipt notifies the original sender that some of their messages were
// viewed, so its client can flip local ticks without polling.
func (d *Dispatcher) SeenReceipt(originalSenderID string, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	ch, ok := d.registry.Lookup(originalSenderID)
	if !ok {
		return
	}
	if err := ch.Send(event.MessagesSeen, event.SeenPayload{IDs: ids}); err != nil {
		d.monitor.IncPushFailed()
		d.log.Warn("Seen receipt push failed",
			"sender_id", originalSenderID,
			"ids", lo.Map(ids, func(id uuid.UUID, _ int) string { return id.String() }),
			"error", err)
		return
	}
	d.monitor.IncReceipts()
}
