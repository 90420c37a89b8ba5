//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pingr/domain/chat"
	apperrors "pingr/errors"
)

type IMessageRepository interface {
	Store(message chat.Message) error
	ListConversation(userA, userB string) ([]chat.Message, error)
	MarkSeen(viewerID string, ids []uuid.UUID) ([]chat.Message, error)
	UnseenCounts(viewerID string) (map[string]int, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// Three key families, all maintained inside the same transaction:
//
//	msg:{pair}:{timestamp_padded}:{uuid} -> message record (JSON)
//	ref:{uuid}                           -> primary key of the record
//	unseen:{receiver}:{sender}:{uuid}    -> nil
//
// The 19-digit zero-padded nanosecond timestamp makes a plain prefix scan
// return the conversation in chronological order, with the UUID as a
// collision disconnector if two messages land on the same nanosecond.
// The unseen family is a projection of "receiver has not seen this yet":
// created with the record, deleted when the flag flips, so counting keys
// under unseen:{viewer}: always matches the store.
func primaryKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		chat.PairKey(m.SenderID, m.ReceiverID),
		m.CreatedAt.UnixNano(),
		m.ID,
	))
}

func refKey(id uuid.UUID) []byte {
	return []byte("ref:" + id.String())
}

func unseenKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("unseen:%s:%s:%s", m.ReceiverID, m.SenderID, m.ID))
}

// Store durably writes a message and its index entries. The unseen entry is
// only created for a message that is still unseen, which keeps trigger-2
// messages (arrived while the chat was open, already seen) out of the
// projection entirely.
func (r MessageRepository) Store(message chat.Message) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primaryKey(message), bytes); err != nil {
			return err
		}
		if err := txn.Set(refKey(message.ID), primaryKey(message)); err != nil {
			return err
		}
		if !message.Seen {
			return txn.Set(unseenKey(message), nil)
		}
		return nil
	})
}

// ListConversation returns every message between the two users in either
// direction, ordered by creation time ascending.
func (r MessageRepository) ListConversation(userA, userB string) ([]chat.Message, error) {
	var messages []chat.Message
	prefix := []byte("msg:" + chat.PairKey(userA, userB) + ":")

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var m chat.Message
				if err := json.Unmarshal(value, &m); err != nil {
					return err
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// MarkSeen flips seen to true for the given ids, restricted to messages the
// viewer actually received. Already-seen and unknown ids are skipped, which
// makes retries and overlapping batches no-ops rather than errors.
// It returns the messages that actually transitioned on this call.
func (r MessageRepository) MarkSeen(viewerID string, ids []uuid.UUID) ([]chat.Message, error) {
	var marked []chat.Message

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			message, key, err := getByRef(txn, id)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					r.log.Warn("Skipping unknown message id", "id", id)
					continue
				}
				return err
			}
			if message.Seen || message.ReceiverID != viewerID {
				continue
			}

			message.Seen = true
			bytes, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(key, bytes); err != nil {
				return err
			}
			if err := txn.Delete(unseenKey(message)); err != nil {
				return err
			}
			marked = append(marked, message)
		}
		return nil
	})
	return marked, err
}

// UnseenCounts aggregates the unseen projection for a viewer, grouped by
// sender. A keys-only scan is enough since the sender id is part of the key.
func (r MessageRepository) UnseenCounts(viewerID string) (map[string]int, error) {
	counts := make(map[string]int)
	prefix := []byte("unseen:" + viewerID + ":")

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			sender, _, found := strings.Cut(rest, ":")
			if !found {
				continue
			}
			counts[sender]++
		}
		return nil
	})
	return counts, err
}

// Get resolves a single message by id.
func (r MessageRepository) Get(id uuid.UUID) (chat.Message, error) {
	var message chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		m, _, err := getByRef(txn, id)
		if err != nil {
			return err
		}
		message = m
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return chat.Message{}, apperrors.ErrMessageNotFound
	}
	return message, err
}

func getByRef(txn *badger.Txn, id uuid.UUID) (chat.Message, []byte, error) {
	item, err := txn.Get(refKey(id))
	if err != nil {
		return chat.Message{}, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return chat.Message{}, nil, err
	}

	item, err = txn.Get(key)
	if err != nil {
		return chat.Message{}, nil, err
	}
	var message chat.Message
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &message)
	})
	return message, key, err
}
