package services

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pingr/dispatch"
	"pingr/domain/chat"
	"pingr/domain/event"
	apperrors "pingr/errors"
	"pingr/mocks"
	"pingr/moderation"
	"pingr/observability"
	"pingr/presence"
)

// stubChannel collects pushes for assertion.
type stubChannel struct {
	names    []event.Name
	payloads []any
}

func (s *stubChannel) Send(name event.Name, payload any) error {
	s.names = append(s.names, name)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubChannel) Close() error { return nil }

func (s *stubChannel) messagesOf(name event.Name) []any {
	var out []any
	for i, n := range s.names {
		if n == name {
			out = append(out, s.payloads[i])
		}
	}
	return out
}

// stubImageStore fakes the media layer without touching the filesystem.
type stubImageStore struct {
	url string
	err error
}

func (s stubImageStore) Save(string) (string, error) { return s.url, s.err }

type serviceFixture struct {
	service  *MessageService
	repo     *mocks.MockIMessageRepository
	registry *presence.Registry
}

func newServiceFixture(t *testing.T, images stubImageStore) serviceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIMessageRepository(ctrl)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := presence.NewRegistry(log)
	monitor := observability.NewMonitor()
	dispatcher := dispatch.NewDispatcher(registry, monitor, log)
	moderator, err := moderation.NewModerator([]string{"dang"}, '*')
	require.NoError(t, err)

	service := NewMessageService(repo, dispatcher, moderator, images, nil, monitor, log)
	return serviceFixture{service: service, repo: repo, registry: registry}
}

func TestMessageService_Send_RejectsEmptyPayload(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})

	// No text, no image: nothing may reach the store
	_, err := f.service.Send(chat.SendMessageCommand{SenderID: "alice", ReceiverID: "bob"})
	req.ErrorIs(err, apperrors.ErrEmptyMessage)
}

func TestMessageService_Send_PersistsCensoredThenPushes(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})
	receiver := &stubChannel{}
	f.registry.Register("bob", receiver)

	var stored chat.Message
	f.repo.EXPECT().Store(gomock.Any()).DoAndReturn(func(m chat.Message) error {
		stored = m
		return nil
	})

	// When alice sends text containing a banned word
	sent, err := f.service.Send(chat.SendMessageCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "well dang that is something",
	})
	req.NoError(err)

	// Then the persisted record carries the masked text, unseen, UTC stamped
	req.Equal("well **** that is something", stored.Text)
	req.False(stored.Seen)
	req.Equal(time.UTC, stored.CreatedAt.Location())
	req.Equal(sent, stored)

	// And the connected receiver got exactly that record pushed
	pushed := receiver.messagesOf(event.NewMessage)
	req.Len(pushed, 1)
	req.Equal(stored, pushed[0].(chat.Message))
}

func TestMessageService_Send_StoreFailureAbortsPush(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})
	receiver := &stubChannel{}
	f.registry.Register("bob", receiver)

	f.repo.EXPECT().Store(gomock.Any()).Return(errors.New("disk full"))

	_, err := f.service.Send(chat.SendMessageCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hello",
	})
	req.Error(err)

	// A message that was never persisted must never be pushed
	req.Empty(receiver.messagesOf(event.NewMessage))
}

func TestMessageService_Send_ImageUploadFailureAbortsStore(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{err: apperrors.ErrNotAnImage})

	// The repo mock has no Store expectation; any call would fail the test
	_, err := f.service.Send(chat.SendMessageCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Image:      "bm90IGFuIGltYWdl",
	})
	req.ErrorIs(err, apperrors.ErrNotAnImage)
}

func TestMessageService_Send_AttachesUploadedImageURL(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{url: "/media/pic.png"})

	var stored chat.Message
	f.repo.EXPECT().Store(gomock.Any()).DoAndReturn(func(m chat.Message) error {
		stored = m
		return nil
	})

	_, err := f.service.Send(chat.SendMessageCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Image:      "aW1hZ2UgYnl0ZXM=",
	})
	req.NoError(err)
	req.Equal("/media/pic.png", stored.Image)
	req.Empty(stored.Text)
}

func conversationFixture(viewerID, counterpartID string) []chat.Message {
	now := time.Now().UTC()
	return []chat.Message{
		{ID: uuid.New(), SenderID: viewerID, ReceiverID: counterpartID, Text: "mine", Seen: true, CreatedAt: now},
		{ID: uuid.New(), SenderID: counterpartID, ReceiverID: viewerID, Text: "unseen one", CreatedAt: now.Add(time.Second)},
		{ID: uuid.New(), SenderID: counterpartID, ReceiverID: viewerID, Text: "unseen two", CreatedAt: now.Add(2 * time.Second)},
	}
}

func TestMessageService_OpenConversation_MarksAndSendsReceipt(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})
	counterpart := &stubChannel{}
	f.registry.Register("bob", counterpart)

	messages := conversationFixture("alice", "bob")
	unseenIDs := []uuid.UUID{messages[1].ID, messages[2].ID}

	f.repo.EXPECT().ListConversation("alice", "bob").Return(messages, nil)
	f.repo.EXPECT().MarkSeen("alice", unseenIDs).Return([]chat.Message{messages[1], messages[2]}, nil)

	// When alice opens the conversation
	got, err := f.service.OpenConversation("alice", "bob")
	req.NoError(err)

	// Then every returned message reads as seen
	req.Len(got, 3)
	for _, m := range got {
		req.True(m.Seen)
	}

	// And bob received one receipt naming exactly the flipped ids
	receipts := counterpart.messagesOf(event.MessagesSeen)
	req.Len(receipts, 1)
	req.Equal(event.SeenPayload{IDs: unseenIDs}, receipts[0].(event.SeenPayload))
}

func TestMessageService_OpenConversation_SecondOpenMarksNothing(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})
	counterpart := &stubChannel{}
	f.registry.Register("bob", counterpart)

	messages := conversationFixture("alice", "bob")
	for i := range messages {
		messages[i].Seen = true
	}

	// No MarkSeen expectation: the mock controller fails the test on any call
	f.repo.EXPECT().ListConversation("alice", "bob").Return(messages, nil)

	got, err := f.service.OpenConversation("alice", "bob")
	req.NoError(err)
	req.Len(got, 3)
	req.Empty(counterpart.messagesOf(event.MessagesSeen))
}

func TestMessageService_OpenConversation_MarkFailureStillReturnsMessages(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})

	messages := conversationFixture("alice", "bob")
	f.repo.EXPECT().ListConversation("alice", "bob").Return(messages, nil)
	f.repo.EXPECT().MarkSeen("alice", gomock.Any()).Return(nil, errors.New("txn conflict"))

	// The fetch survives, the transition retries on the next open
	got, err := f.service.OpenConversation("alice", "bob")
	req.NoError(err)
	req.Len(got, 3)
	req.False(got[1].Seen)
}

func TestMessageService_MarkSeen_GroupsReceiptsBySender(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})
	alice := &stubChannel{}
	carol := &stubChannel{}
	f.registry.Register("alice", alice)
	f.registry.Register("carol", carol)

	fromAlice := chat.Message{ID: uuid.New(), SenderID: "alice", ReceiverID: "bob"}
	fromCarol := chat.Message{ID: uuid.New(), SenderID: "carol", ReceiverID: "bob"}
	ids := []uuid.UUID{fromAlice.ID, fromCarol.ID}

	f.repo.EXPECT().MarkSeen("bob", ids).Return([]chat.Message{fromAlice, fromCarol}, nil)

	count, err := f.service.MarkSeen("bob", ids)
	req.NoError(err)
	req.Equal(2, count)

	// Each sender got a receipt naming only their own messages
	aliceReceipts := alice.messagesOf(event.MessagesSeen)
	req.Len(aliceReceipts, 1)
	req.Equal(event.SeenPayload{IDs: []uuid.UUID{fromAlice.ID}}, aliceReceipts[0].(event.SeenPayload))

	carolReceipts := carol.messagesOf(event.MessagesSeen)
	req.Len(carolReceipts, 1)
	req.Equal(event.SeenPayload{IDs: []uuid.UUID{fromCarol.ID}}, carolReceipts[0].(event.SeenPayload))
}

func TestMessageService_MarkSeen_NothingTransitionedSendsNoReceipts(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})
	alice := &stubChannel{}
	f.registry.Register("alice", alice)

	ids := []uuid.UUID{uuid.New()}
	f.repo.EXPECT().MarkSeen("bob", ids).Return(nil, nil)

	count, err := f.service.MarkSeen("bob", ids)
	req.NoError(err)
	req.Zero(count)
	req.Empty(alice.messagesOf(event.MessagesSeen))
}

func TestMessageService_UnseenCounts_DelegatesToStore(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t, stubImageStore{})

	f.repo.EXPECT().UnseenCounts("bob").Return(map[string]int{"alice": 2}, nil)

	counts, err := f.service.UnseenCounts("bob")
	req.NoError(err)
	req.Equal(map[string]int{"alice": 2}, counts)
}
