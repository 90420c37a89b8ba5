// Package search maintains a full-text index over message text so a viewer
// can search their own conversations. The index is derived state: losing it
// never loses a message, only search results.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"pingr/domain/chat"
)

type Hit struct {
	ID         uuid.UUID `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// Index adds a message to the search index. Image-only messages carry no
// searchable text and are skipped.
func (i *Index) Index(message chat.Message) error {
	if message.Text == "" {
		return nil
	}

	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("text", message.Text).StoreValue()).
		AddField(bluge.NewKeywordField("participant", message.SenderID)).
		AddField(bluge.NewKeywordField("participant", message.ReceiverID)).
		AddField(bluge.NewStoredOnlyField("senderId", []byte(message.SenderID))).
		AddField(bluge.NewStoredOnlyField("receiverId", []byte(message.ReceiverID))).
		AddField(bluge.NewStoredOnlyField("createdAt", []byte(message.CreatedAt.UTC().Format(time.RFC3339Nano))))

	return i.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message text, restricted to conversations
// the viewer takes part in.
func (i *Index) Search(ctx context.Context, viewerID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("text")).
		AddMust(bluge.NewTermQuery(viewerID).SetField("participant"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID, _ = uuid.Parse(string(value))
			case "text":
				hit.Text = string(value)
			case "senderId":
				hit.SenderID = string(value)
			case "receiverId":
				hit.ReceiverID = string(value)
			case "createdAt":
				hit.CreatedAt, _ = time.Parse(time.RFC3339Nano, string(value))
			}
			return true
		})
		if err != nil {
			i.log.Warn("Skipping unreadable search hit", "error", err)
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
