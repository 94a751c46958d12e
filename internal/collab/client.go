package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inamate/drawcore/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 1 << 20
	sendBuffer = 256
)

// Client is one websocket connection editing a drawing.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	session     *session.Session
	UserID      string
	DisplayName string
	DrawingID   string
	ClientID    string

	mu     sync.Mutex
	send   chan *Message
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, sess *session.Session, userID, displayName, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		session:     sess,
		send:        make(chan *Message, sendBuffer),
		UserID:      userID,
		DisplayName: displayName,
		DrawingID:   sess.DrawingID,
		ClientID:    clientID,
	}
}

// Serve registers the client with its hub and pumps messages until the
// connection drops or ctx ends. The client is unregistered on return.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	go func() {
		c.writeLoop(ctx)
		cancel()
	}()
	c.readLoop(ctx)
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					slog.Debug("read error", "error", err, "user", c.UserID)
				}
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "user", c.UserID)
			c.Send(newMessage(TypeError, ErrorPayload{Message: "invalid message"}))
			continue
		}
		c.stamp(&msg)
		c.hub.handleMessage(c, &msg)
	}
}

// stamp overwrites client-supplied identity with the connection's own.
func (c *Client) stamp(msg *Message) {
	msg.UserID = c.UserID
	msg.ClientID = c.ClientID
	msg.DrawingID = c.DrawingID
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("marshal message", "type", msg.Type, "error", err)
				continue
			}
			if err := c.write(ctx, data); err != nil {
				slog.Debug("write error", "error", err, "user", c.UserID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Send queues msg without blocking. Messages to a full or closed client
// are dropped.
func (c *Client) Send(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		slog.Warn("client send buffer full, dropping message", "user", c.UserID, "type", msg.Type)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
