//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"pingr/dispatch"
	"pingr/domain/chat"
	apperrors "pingr/errors"
	"pingr/imagestore"
	"pingr/moderation"
	"pingr/observability"
	"pingr/repositories"
)

var validate = validator.New()

// SendPayload is the request body of a send. Text and image may coexist;
// at least one must be present.
type SendPayload struct {
	Text  string `json:"text" validate:"max=4096"`
	Image string `json:"image"`
}

// MessageIndexer decouples the service from the search engine. Indexing is
// best-effort: a failed index write never fails a send.
type MessageIndexer interface {
	Index(message chat.Message) error
}

type IMessageService interface {
	Send(command chat.SendMessageCommand) (chat.Message, error)
	OpenConversation(viewerID, counterpartID string) ([]chat.Message, error)
	MarkSeen(viewerID string, ids []uuid.UUID) (int, error)
	UnseenCounts(viewerID string) (map[string]int, error)
}

// MessageService owns the delivery pipeline and the seen-state transitions.
// Every mutation goes through the store first; pushes to live channels only
// happen after the durable write is acknowledged.
type MessageService struct {
	messages   repositories.IMessageRepository
	dispatcher *dispatch.Dispatcher
	moderator  moderation.Moderator
	images     imagestore.Store
	index      MessageIndexer
	monitor    *observability.Monitor
	log        *slog.Logger
}

func NewMessageService(
	messages repositories.IMessageRepository,
	dispatcher *dispatch.Dispatcher,
	moderator moderation.Moderator,
	images imagestore.Store,
	index MessageIndexer,
	monitor *observability.Monitor,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messages:   messages,
		dispatcher: dispatcher,
		moderator:  moderator,
		images:     images,
		index:      index,
		monitor:    monitor,
		log:        log,
	}
}

// Send validates, moderates, uploads, persists and finally dispatches a new
// message. Ordering is strict: a storage failure aborts before any push, a
// push failure never rolls the stored message back.
func (s *MessageService) Send(command chat.SendMessageCommand) (chat.Message, error) {
	if command.Text == "" && command.Image == "" {
		return chat.Message{}, apperrors.ErrEmptyMessage
	}
	payload := SendPayload{Text: command.Text, Image: command.Image}
	if err := validate.Struct(payload); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", apperrors.ErrEmptyMessage, err)
	}

	text := command.Text
	var censored []string
	if text != "" {
		text, censored = s.moderator.Censor(text)
		if len(censored) > 0 {
			s.log.Info("Censored outgoing message",
				"sender_id", command.SenderID,
				"words", len(censored))
		}
	}

	// Upload before persist: the record must never point at a reference
	// that does not exist.
	var imageURL string
	if command.Image != "" {
		url, err := s.images.Save(command.Image)
		if err != nil {
			return chat.Message{}, err
		}
		imageURL = url
	}

	message := chat.Message{
		ID:         uuid.New(),
		SenderID:   command.SenderID,
		ReceiverID: command.ReceiverID,
		Text:       text,
		Image:      imageURL,
		Lang:       moderation.Lang(text),
		Seen:       false,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.messages.Store(message); err != nil {
		return chat.Message{}, err
	}
	s.monitor.IncStored()

	if s.index != nil {
		if err := s.index.Index(message); err != nil {
			s.log.Warn("Message indexing failed", "message_id", message.ID, "error", err)
		}
	}

	s.dispatcher.NewMessage(message)
	return message, nil
}

// OpenConversation returns the full ordered conversation and transitions
// every receiver-side unseen message to seen, firing a receipt back to the
// counterpart for the ids that actually flipped on this call. Opening the
// same conversation twice in a row marks nothing the second time and
// re-sends no receipts.
func (s *MessageService) OpenConversation(viewerID, counterpartID string) ([]chat.Message, error) {
	messages, err := s.messages.ListConversation(viewerID, counterpartID)
	if err != nil {
		return nil, err
	}

	unseen := lo.FilterMap(messages, func(m chat.Message, _ int) (uuid.UUID, bool) {
		return m.ID, m.ReceiverID == viewerID && !m.Seen
	})
	if len(unseen) == 0 {
		return messages, nil
	}

	marked, err := s.messages.MarkSeen(viewerID, unseen)
	if err != nil {
		// The fetch itself succeeded; the seen transition retries on the
		// next open, so surface the messages rather than failing the load.
		s.log.Error("Bulk mark-seen failed, will retry on next open",
			"viewer_id", viewerID, "error", err)
		return messages, nil
	}

	markedIDs := lo.Map(marked, func(m chat.Message, _ int) uuid.UUID { return m.ID })
	markedSet := lo.SliceToMap(markedIDs, func(id uuid.UUID) (uuid.UUID, struct{}) { return id, struct{}{} })
	for i := range messages {
		if _, ok := markedSet[messages[i].ID]; ok {
			messages[i].Seen = true
		}
	}

	s.dispatcher.SeenReceipt(counterpartID, markedIDs)
	return messages, nil
}

// MarkSeen applies an explicit acknowledgement batch. Receipts go to each
// original sender for exactly the ids that transitioned, so re-delivering
// an overlapping batch produces no duplicate receipts.
func (s *MessageService) MarkSeen(viewerID string, ids []uuid.UUID) (int, error) {
	marked, err := s.messages.MarkSeen(viewerID, ids)
	if err != nil {
		return 0, err
	}

	bySender := lo.GroupBy(marked, func(m chat.Message) string { return m.SenderID })
	for senderID, messages := range bySender {
		s.dispatcher.SeenReceipt(senderID,
			lo.Map(messages, func(m chat.Message, _ int) uuid.UUID { return m.ID }))
	}
	return len(marked), nil
}

// UnseenCounts re-derives the per-counterpart unseen mapping from the store.
func (s *MessageService) UnseenCounts(viewerID string) (map[string]int, error) {
	return s.messages.UnseenCounts(viewerID)
}
