// Package transport implements the live channel over a websocket.
// Each connected user holds exactly one SocketChannel; outbound events go
// through a bounded queue drained by a single writer goroutine, so callers
// never block on a slow peer.
package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pingr/domain/event"
	apperrors "pingr/errors"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 45 * time.Second
	maxInbound   = 64 << 10
)

type SocketChannel struct {
	userID    string
	conn      *websocket.Conn
	out       chan event.Envelope
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func NewSocketChannel(userID string, conn *websocket.Conn, bufferSize int, log *slog.Logger) *SocketChannel {
	return &SocketChannel{
		userID: userID,
		conn:   conn,
		out:    make(chan event.Envelope, bufferSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Send queues an outbound event. It fails fast instead of waiting: a closed
// channel or a saturated buffer returns an error the dispatcher absorbs,
// and the receiver reconciles on its next fetch.
func (c *SocketChannel) Send(name event.Name, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return apperrors.ErrChannelClosed
	default:
	}

	select {
	case c.out <- event.Envelope{Event: name, Data: data}:
		return nil
	case <-c.done:
		return apperrors.ErrChannelClosed
	default:
		return apperrors.ErrChannelSaturated
	}
}

// Close is idempotent and unblocks both pumps.
func (c *SocketChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

func (c *SocketChannel) Done() <-chan struct{} {
	return c.done
}

// WritePump drains the outbound queue onto the wire and keeps the
// connection alive with pings. It owns all writes to the socket.
func (c *SocketChannel) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case envelope := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.log.Debug("Socket write failed", "user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump consumes inbound envelopes until the peer goes away. The only
// inbound event is markSeen; anything else is logged and dropped. Events
// are handled in arrival order, one at a time per channel.
func (c *SocketChannel) ReadPump(onMarkSeen func(ids []uuid.UUID)) {
	defer func() {
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Socket read failed", "user_id", c.userID, "error", err)
			}
			return
		}

		var envelope event.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.log.Warn("Dropping malformed inbound event", "user_id", c.userID, "error", err)
			continue
		}

		switch envelope.Event {
		case event.MarkSeen:
			var payload event.SeenPayload
			if err := json.Unmarshal(envelope.Data, &payload); err != nil {
				c.log.Warn("Dropping malformed markSeen payload", "user_id", c.userID, "error", err)
				continue
			}
			onMarkSeen(payload.IDs)
		default:
			c.log.Debug("Unhandled inbound event", "user_id", c.userID, "event", envelope.Event)
		}
	}
}
