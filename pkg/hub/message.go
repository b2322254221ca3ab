// Package hub provides a thread-safe websocket session hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"time"

	"github.com/teslashibe/llm-relay/pkg/protocol"
)

// Conn is the part of a websocket connection the hub drives. Connections
// from github.com/gofiber/contrib/websocket and github.com/gorilla/websocket
// both satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Message is a pre-encoded frame queued for delivery.
type Message struct {
	Event protocol.Event // For logging only
	Data  []byte
}

// Encode serializes an event envelope for delivery.
func Encode(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Event: msg.Event, Data: data}, nil
}

// TextMessage encodes a text event.
func TextMessage(event protocol.Event, id, text string) Message {
	// A string payload always marshals.
	m, _ := Encode(protocol.NewTextMessage(event, id, text))
	return m
}
