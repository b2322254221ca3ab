package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		data    interface{}
		wantErr bool
	}{
		{
			name:    "chat request",
			event:   EventChatRequest,
			data:    map[string]string{"prompt": "hi"},
			wantErr: false,
		},
		{
			name:    "text response",
			event:   EventChatResponse,
			data:    "Good morrow",
			wantErr: false,
		},
		{
			name:    "nil data",
			event:   EventCompletionRequest,
			data:    nil,
			wantErr: false,
		},
		{
			name:    "unmarshalable data",
			event:   EventChatRequest,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.event, "c1", tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Event != tt.event {
				t.Errorf("NewMessage() event = %v, want %v", msg.Event, tt.event)
			}
			if msg.ID != "c1" {
				t.Errorf("NewMessage() id = %q, want c1", msg.ID)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := NewTextMessage(EventChatResponse, "c7", "Good morrow, friend.")

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !strings.Contains(string(bytes), `"event":"chat response"`) {
		t.Errorf("wire form = %s", bytes)
	}

	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Event != EventChatResponse {
		t.Errorf("Event = %v, want %v", parsed.Event, EventChatResponse)
	}
	if parsed.ID != "c7" {
		t.Errorf("ID = %q, want c7", parsed.ID)
	}

	text, err := parsed.Text()
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "Good morrow, friend." {
		t.Errorf("Text() = %q", text)
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"event":"image request","data":{"image_base64":"AAAA"}}`))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.Event != EventImageRequest {
		t.Errorf("Event = %v", msg.Event)
	}

	var payload struct {
		Image string `json:"image_base64"`
	}
	if err := msg.ParseData(&payload); err != nil || payload.Image != "AAAA" {
		t.Errorf("ParseData() = %+v, %v", payload, err)
	}

	if _, err := ParseMessage([]byte(`{"data":"x"}`)); !errors.Is(err, ErrMissingEvent) {
		t.Errorf("missing event: error = %v, want ErrMissingEvent", err)
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("ParseMessage() should reject invalid JSON")
	}
}

func TestTextOnNonText(t *testing.T) {
	msg, _ := NewMessage(EventChatRequest, "", map[string]string{"prompt": "hi"})
	if _, err := msg.Text(); err == nil {
		t.Error("Text() should fail on object data")
	}
}

func TestResponseEvent(t *testing.T) {
	tests := []struct {
		req  Event
		want Event
		ok   bool
		ack  string
	}{
		{EventCompletionRequest, EventCompletionResponse, true, "the server received your completion request"},
		{EventChatRequest, EventChatResponse, true, "the server received your chat request"},
		{EventImageRequest, EventImageResponse, true, "the server received your image request"},
		{"video request", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.req), func(t *testing.T) {
			got, ok := ResponseEvent(tt.req)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ResponseEvent(%q) = %q, %v", tt.req, got, ok)
			}
			if tt.req.IsRequest() != tt.ok {
				t.Errorf("IsRequest() = %v, want %v", tt.req.IsRequest(), tt.ok)
			}
			if tt.ok && AckText(tt.req) != tt.ack {
				t.Errorf("AckText() = %q, want %q", AckText(tt.req), tt.ack)
			}
		})
	}
}
