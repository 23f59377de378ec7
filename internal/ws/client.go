package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"errors"

	"fun-friday-chat/backend/internal/identity"
	"fun-friday-chat/backend/internal/relay"
	wsproto "fun-friday-chat/backend/pkg/ws"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Deadline for the store I/O behind a single join or submit
	opTimeout = 10 * time.Second
)

// Client is one live WebSocket connection. Its inbound events are handled
// one at a time in arrival order; concurrency exists only across
// connections.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	// sess is set once the join handshake succeeds
	sess    *relay.Session
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

// Deliver implements rooms.Subscriber: it enqueues an outbound frame
// without blocking the broadcaster.
func (c *Client) Deliver(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// closeSend marks the client closed and shuts the outbound channel. Only the
// hub calls this, after membership has been dropped.
func (c *Client) closeSend() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.Send)
}

// ReadPump reads events off the connection until it drops. Events are
// handled inline so a single connection's requests are never reordered.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error", "conn_id", c.ID, "error", err.Error())
			}
			break
		}

		var event wsproto.Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.Hub.log.Warn("malformed event", "conn_id", c.ID, "error", err.Error())
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event wsproto.Event) {
	switch event.Type {
	case wsproto.EventJoin:
		c.handleJoin(event.Payload)
	case wsproto.EventMessage:
		c.handleSubmit(event.Payload)
	default:
		c.Hub.log.Warn("unknown event type", "conn_id", c.ID, "type", event.Type)
	}
}

// handleJoin resolves the room and the connection's identity, records the
// session snapshot and acknowledges with the public user projection.
func (c *Client) handleJoin(raw json.RawMessage) {
	var join wsproto.JoinPayload
	if raw != nil {
		if err := json.Unmarshal(raw, &join); err != nil {
			c.sendEvent(wsproto.EventJoined, wsproto.JoinedPayload{OK: false, Error: "invalid join payload"})
			return
		}
	}

	roomName := join.Room
	if roomName == "" {
		roomName = c.Hub.defaultRoom
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	room, err := c.Hub.registry.Ensure(ctx, roomName)
	if err != nil {
		c.Hub.log.LogError(err, "join failed", "conn_id", c.ID, "room", roomName)
		c.sendEvent(wsproto.EventJoined, wsproto.JoinedPayload{OK: false, Error: "DB error"})
		return
	}

	user, err := c.Hub.resolver.Resolve(ctx, join.User)
	if err != nil {
		if errors.Is(err, identity.ErrStoreUnavailable) {
			c.Hub.log.LogError(err, "identity resolution failed", "conn_id", c.ID)
		}
		c.sendEvent(wsproto.EventJoined, wsproto.JoinedPayload{OK: false, Error: "DB error"})
		return
	}

	userID := user.ID
	c.sess = &relay.Session{
		ConnID:    c.ID,
		UserID:    &userID,
		UserName:  user.DisplayName,
		AvatarURL: user.AvatarURL,
		RoomID:    room.ID,
		RoomName:  room.Name,
		ForceAnon: join.Anonymous,
		Sub:       c,
	}

	c.Hub.registry.Join(c, room.ID)

	pub := user.ToPublic()
	c.sendEvent(wsproto.EventJoined, wsproto.JoinedPayload{OK: true, User: &pub})

	c.Hub.log.Info("client joined",
		"conn_id", c.ID,
		"room", room.Name,
		"user_id", user.ID,
		"anonymous", join.Anonymous,
	)
}

// handleSubmit relays one message. Validation drops are silent by contract;
// persistence failures surface only to this connection.
func (c *Client) handleSubmit(raw json.RawMessage) {
	if c.sess == nil {
		return
	}

	if !c.limiter.Allow() {
		c.Hub.log.Warn("submit rate limited", "conn_id", c.ID, "room", c.sess.RoomName)
		return
	}

	var submit wsproto.SubmitPayload
	if raw != nil {
		if err := json.Unmarshal(raw, &submit); err != nil {
			c.Hub.log.Warn("malformed submit", "conn_id", c.ID, "error", err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := c.Hub.relay.Submit(ctx, c.sess, submit.Text, submit.IsAnonymous)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrEmptyMessage), errors.Is(err, relay.ErrMessageTooLong):
			// dropped silently by contract
		case errors.Is(err, relay.ErrPersistence):
			c.sendEvent(wsproto.EventError, wsproto.ErrorPayload{Error: "Failed to send message"})
		default:
			c.Hub.log.LogError(err, "submit failed", "conn_id", c.ID)
			c.sendEvent(wsproto.EventError, wsproto.ErrorPayload{Error: "Failed to send message"})
		}
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	frame, err := wsproto.Encode(eventType, payload)
	if err != nil {
		c.Hub.log.LogError(err, "event encode failed", "conn_id", c.ID, "type", eventType)
		return
	}
	c.Deliver(frame)
}

// WritePump drains the outbound channel onto the wire and keeps the
// connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
