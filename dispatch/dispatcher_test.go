package dispatch

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pingr/domain/chat"
	"pingr/domain/event"
	"pingr/observability"
	"pingr/presence"
)

type recordingChannel struct {
	names    []event.Name
	payloads []any
	sendErr  error
}

func (r *recordingChannel) Send(name event.Name, payload any) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.names = append(r.names, name)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingChannel) Close() error { return nil }

func newTestDispatcher() (*Dispatcher, *presence.Registry) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := presence.NewRegistry(log)
	return NewDispatcher(registry, observability.NewMonitor(), log), registry
}

func TestDispatcher_NewMessage_PushesToConnectedReceiver(t *testing.T) {
	req := require.New(t)
	dispatcher, registry := newTestDispatcher()
	ch := &recordingChannel{}
	registry.Register("bob", ch)

	message := chat.Message{
		ID:         uuid.New(),
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hello",
		CreatedAt:  time.Now().UTC(),
	}

	dispatcher.NewMessage(message)

	// The registration broadcast precedes the push, the push comes last
	req.NotEmpty(ch.names)
	req.Equal(event.NewMessage, ch.names[len(ch.names)-1])
	req.Equal(message, ch.payloads[len(ch.payloads)-1])
}

func TestDispatcher_NewMessage_OfflineReceiverIsSilent(t *testing.T) {
	dispatcher, _ := newTestDispatcher()

	// Must not panic, the message waits in the store
	dispatcher.NewMessage(chat.Message{
		ID:         uuid.New(),
		SenderID:   "alice",
		ReceiverID: "ghost",
	})
}

func TestDispatcher_NewMessage_AbsorbsSendFailure(t *testing.T) {
	req := require.New(t)
	dispatcher, registry := newTestDispatcher()
	ch := &recordingChannel{sendErr: io.ErrClosedPipe}
	registry.Register("bob", ch)

	dispatcher.NewMessage(chat.Message{ID: uuid.New(), ReceiverID: "bob"})

	// Nothing reached the channel and nothing blew up
	req.Empty(ch.names)
}

func TestDispatcher_SeenReceipt_DeliversIDs(t *testing.T) {
	req := require.New(t)
	dispatcher, registry := newTestDispatcher()
	ch := &recordingChannel{}
	registry.Register("alice", ch)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	dispatcher.SeenReceipt("alice", ids)

	req.Equal(event.MessagesSeen, ch.names[len(ch.names)-1])
	req.Equal(event.SeenPayload{IDs: ids}, ch.payloads[len(ch.payloads)-1])
}

func TestDispatcher_SeenReceipt_EmptyBatchIsNoop(t *testing.T) {
	req := require.New(t)
	dispatcher, registry := newTestDispatcher()
	ch := &recordingChannel{}
	registry.Register("alice", ch)
	before := len(ch.names)

	dispatcher.SeenReceipt("alice", nil)

	req.Len(ch.names, before)
}
