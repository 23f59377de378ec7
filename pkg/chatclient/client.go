package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/pkg/logger"
	pkgws "fun-friday-chat/backend/pkg/ws"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// Config describes a relay connection.
type Config struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:3000/ws
	URL string
	// Room to join; the server falls back to its default room when empty
	Room string
	// Claims identify the user to the resolver
	Claims models.UserClaims
	// Anonymous forces every message on this connection to be anonymous
	Anonymous bool
	Renderer  Renderer
	// OnError receives per-connection error notices from the relay
	OnError func(msg string)
	Logger  *logger.Logger
}

// Client is a relay connection with reconciliation wired in.
type Client struct {
	conn    *websocket.Conn
	rec     *Reconciler
	cfg     Config
	log     *logger.Logger
	writeMu sync.Mutex
	done    chan struct{}
}

// Dial connects, performs the join handshake, and returns once the server
// has acknowledged the join and the resolved user id is known.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetGlobal()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn: conn,
		cfg:  cfg,
		log:  cfg.Logger,
		done: make(chan struct{}),
	}
	c.rec = NewReconciler(cfg.Renderer, c.submit, cfg.Claims.DisplayName, cfg.Logger)

	if err := c.join(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) join() error {
	frame, err := pkgws.Encode(pkgws.EventJoin, pkgws.JoinPayload{
		Room:      c.cfg.Room,
		User:      c.cfg.Claims,
		Anonymous: c.cfg.Anonymous,
	})
	if err != nil {
		return err
	}
	if err := c.write(frame); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	// Frames before the joined ack are not expected; skip anything else
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("join ack: %w", err)
		}

		var event pkgws.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}
		if event.Type != pkgws.EventJoined {
			continue
		}

		var joined pkgws.JoinedPayload
		if err := json.Unmarshal(event.Payload, &joined); err != nil {
			return fmt.Errorf("join ack: %w", err)
		}
		if !joined.OK {
			return fmt.Errorf("join rejected: %s", joined.Error)
		}
		if joined.User != nil {
			c.rec.SetUser(joined.User.ID)
		}
		return nil
	}
}

// Listen consumes broadcasts until the connection drops. Blocking; run it
// in its own goroutine.
func (c *Client) Listen() error {
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return err
			}
			return nil
		}

		var event pkgws.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Warn("unreadable frame", "error", err.Error())
			continue
		}

		switch event.Type {
		case pkgws.EventMessage:
			var m models.MessagePayload
			if err := json.Unmarshal(event.Payload, &m); err != nil {
				c.log.Warn("unreadable message payload", "error", err.Error())
				continue
			}
			c.rec.ApplyBroadcast(m)
		case pkgws.EventError:
			var e pkgws.ErrorPayload
			if err := json.Unmarshal(event.Payload, &e); err == nil && c.cfg.OnError != nil {
				c.cfg.OnError(e.Error)
			}
		}
	}
}

// Send posts a message through the reconciler, rendering an optimistic
// echo first. Reports whether the message was actually submitted.
func (c *Client) Send(text string, anonymous bool) bool {
	return c.rec.Send(text, anonymous)
}

// Reconciler exposes the reconciliation state machine, mainly for tests.
func (c *Client) Reconciler() *Reconciler {
	return c.rec
}

// LoadHistory fetches the room's recent messages over REST and renders
// them oldest first.
func (c *Client) LoadHistory(ctx context.Context, baseURL string, limit int) error {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages?limit=%d",
		baseURL, url.PathEscape(c.cfg.Room), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history: unexpected status %d", resp.StatusCode)
	}

	var rows []models.MessagePayload
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	for _, m := range rows {
		c.rec.ApplyBroadcast(m)
	}
	return nil
}

// Close shuts the connection down and waits briefly for the read loop.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	return c.conn.Close()
}

func (c *Client) submit(text string, anonymous bool) error {
	frame, err := pkgws.Encode(pkgws.EventMessage, pkgws.SubmitPayload{
		Text:        text,
		IsAnonymous: anonymous,
	})
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
