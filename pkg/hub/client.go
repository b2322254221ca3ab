package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-session queue depth before a session counts as slow
	sendBuffer = 256
)

// Handler receives every text frame a session sends. It runs on the
// session's read goroutine and must not block.
type Handler func(c *Client, data []byte)

// Client represents a single websocket session
type Client struct {
	// ID is unique per connection.
	ID string

	hub       *Hub
	conn      Conn
	onMessage Handler
	logger    *slog.Logger

	mu     sync.Mutex // guards send and closed
	send   chan Message
	closed bool
}

func newClient(h *Hub, conn Conn, onMessage Handler) *Client {
	id := uuid.NewString()
	return &Client{
		ID:        id,
		hub:       h,
		conn:      conn,
		onMessage: onMessage,
		logger:    h.logger.With("session", id),
		send:      make(chan Message, sendBuffer),
	}
}

// SessionID returns the session's unique ID.
func (c *Client) SessionID() string { return c.ID }

// Send queues msg for this session only. It never blocks and reports false
// when the session is gone or its buffer is full.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// run starts the session's read and write pumps and blocks until the
// connection closes.
func (c *Client) run() {
	go c.writePump()
	c.readPump()
}

// readPump reads frames from the websocket connection and hands them to the
// handler. It keeps the connection alive and detects disconnection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", "error", err)
			}
			return
		}
		// Any traffic proves the peer is alive.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if mt != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "type", mt)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c, data)
		}
	}
}

// writePump writes queued messages to the websocket connection.
// Only this goroutine writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel - send close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message.Data); err != nil {
				c.logger.Debug("write failed", "event", message.Event, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
