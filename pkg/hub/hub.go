package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/llm-relay/internal/log"
)

// DefaultMaxMessageSize is the largest inbound frame accepted. Image
// requests carry whole base64 pictures.
const DefaultMaxMessageSize = 16 << 20

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithMaxMessageSize caps inbound frame size.
func WithMaxMessageSize(n int64) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxMessageSize = n
		}
	}
}

// WithSessionObserver registers fn to be called with the session count
// whenever it changes. fn runs on the hub goroutine.
func WithSessionObserver(fn func(count int)) Option {
	return func(h *Hub) { h.observe = fn }
}

// Hub maintains the set of active sessions and fans messages out to them
type Hub struct {
	// Name for logging
	name string

	// Registered sessions by ID
	clients map[string]*Client

	// Outbound messages for every session
	broadcast chan Message

	// Register requests from sessions
	register chan *Client

	// Unregister requests from sessions
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Guards clients for readers outside the hub goroutine
	mu sync.RWMutex

	maxMessageSize int64
	observe        func(int)
	logger         *slog.Logger
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:           name,
		clients:        make(map[string]*Client),
		broadcast:      make(chan Message, sendBuffer),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		maxMessageSize: DefaultMaxMessageSize,
		logger:         log.Component("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("hub", name)
	return h
}

// Run is the hub's main loop. It owns session membership and returns when
// ctx is cancelled, closing every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				c.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.notify(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			count := len(h.clients)
			h.mu.Unlock()
			c.logger.Info("session connected", "sessions", count)
			h.notify(count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				c.close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			c.logger.Info("session disconnected", "sessions", count)
			h.notify(count)

		case message := <-h.broadcast:
			dropped := 0
			h.mu.Lock()
			for id, c := range h.clients {
				if !c.Send(message) {
					// Buffer full: the session is too slow to keep
					c.close()
					delete(h.clients, id)
					dropped++
					c.logger.Warn("dropped slow session", "event", message.Event)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			if dropped > 0 {
				h.notify(count)
			}
		}
	}
}

func (h *Hub) notify(count int) {
	if h.observe != nil {
		h.observe(count)
	}
}

// Serve registers conn as a new session and pumps it until it disconnects.
// Every text frame the session sends is passed to onMessage.
func (h *Hub) Serve(conn Conn, onMessage Handler) {
	c := newClient(h, conn, onMessage)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.run()
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

// Broadcast queues msg for every connected session. It reports false once
// the hub has stopped.
func (h *Hub) Broadcast(msg Message) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- msg:
		return true
	case <-h.done:
		return false
	}
}

// SendTo queues msg for one session. It reports false if the session is
// unknown or cannot take more messages.
func (h *Hub) SendTo(id string, msg Message) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Send(msg)
}

// ClientCount returns the number of connected sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done is closed after Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
