// Package protocol defines the WebSocket event envelope exchanged between
// browser sessions and the relay, plus decoding of request payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event names a WebSocket event.
type Event string

const (
	// Session → relay
	EventCompletionRequest Event = "completion request"
	EventChatRequest       Event = "chat request"
	EventImageRequest      Event = "image request"

	// Relay → session
	EventCompletionResponse Event = "completion response"
	EventChatResponse       Event = "chat response"
	EventImageResponse      Event = "image response"
	EventAck                Event = "ack"   // Receipt of a request, origin only
	EventError              Event = "error" // Protocol error, origin only
)

var (
	// ErrMissingEvent is returned when an envelope has no event name.
	ErrMissingEvent = errors.New("protocol: message has no event")

	// ErrUnknownEvent is returned for events the relay does not serve.
	ErrUnknownEvent = errors.New("protocol: unknown event")
)

// Message is the wrapper for all WebSocket messages.
type Message struct {
	Event     Event           `json:"event"`
	ID        string          `json:"id,omitempty"` // Client correlation id, echoed back
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(event Event, id string, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Event:     event,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// NewTextMessage creates a message whose data is a plain string.
func NewTextMessage(event Event, id, text string) *Message {
	raw, _ := json.Marshal(text)
	return &Message{
		Event:     event,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}
}

// Text returns the message data as a string.
func (m *Message) Text() (string, error) {
	var s string
	if err := m.ParseData(&s); err != nil {
		return "", fmt.Errorf("message data is not text: %w", err)
	}
	return s, nil
}

// ParseData unmarshals the message data into the provided struct. Empty data
// leaves v untouched.
func (m *Message) ParseData(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Event == "" {
		return nil, ErrMissingEvent
	}
	return &msg, nil
}

// Kind returns the request kind ("completion", "chat" or "image") for a
// request or response event, or "" for anything else.
func (e Event) Kind() string {
	switch e {
	case EventCompletionRequest, EventCompletionResponse:
		return "completion"
	case EventChatRequest, EventChatResponse:
		return "chat"
	case EventImageRequest, EventImageResponse:
		return "image"
	}
	return ""
}

// IsRequest reports whether e is one of the request events.
func (e Event) IsRequest() bool {
	switch e {
	case EventCompletionRequest, EventChatRequest, EventImageRequest:
		return true
	}
	return false
}

// ResponseEvent maps a request event to the event its outcome is published
// under.
func ResponseEvent(req Event) (Event, bool) {
	switch req {
	case EventCompletionRequest:
		return EventCompletionResponse, true
	case EventChatRequest:
		return EventChatResponse, true
	case EventImageRequest:
		return EventImageResponse, true
	}
	return "", false
}

// AckText is the acknowledgement sent to the origin of a request.
func AckText(req Event) string {
	return fmt.Sprintf("the server received your %s request", req.Kind())
}
