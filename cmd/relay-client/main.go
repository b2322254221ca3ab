// relay-client: sends one request to a running relay and prints the ack and
// the response.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/llm-relay/pkg/protocol"
)

var (
	url         = flag.String("url", "ws://localhost:3000/ws", "Relay websocket URL")
	kind        = flag.String("kind", "chat", "Request kind: completion, chat or image")
	prompt      = flag.String("prompt", "", "Prompt (empty uses the server default)")
	system      = flag.String("system", "", "System prompt (empty uses the server default)")
	maxTokens   = flag.Int("max-tokens", 0, "Max tokens (0 uses the server default)")
	temperature = flag.Float64("temperature", 0, "Temperature (0 uses the server default)")
	imagePath   = flag.String("image", "", "Image file for image requests")
	timeout     = flag.Duration("timeout", 3*time.Minute, "How long to wait for the response")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay-client: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	msg, err := buildRequest()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", *url, err)
	}
	defer conn.Close()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	want, _ := protocol.ResponseEvent(msg.Event)
	conn.SetReadDeadline(time.Now().Add(*timeout))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		reply, err := protocol.ParseMessage(raw)
		if err != nil {
			continue
		}
		// Responses to other sessions are broadcast too.
		if reply.ID != msg.ID {
			continue
		}

		text, _ := reply.Text()
		switch reply.Event {
		case protocol.EventAck:
			fmt.Fprintf(os.Stderr, "%s\n", text)
		case protocol.EventError:
			return fmt.Errorf("server: %s", text)
		case want:
			fmt.Println(text)
			return nil
		}
	}
}

func buildRequest() (*protocol.Message, error) {
	var event protocol.Event
	payload := map[string]interface{}{}

	switch *kind {
	case "completion":
		event = protocol.EventCompletionRequest
	case "chat":
		event = protocol.EventChatRequest
	case "image":
		event = protocol.EventImageRequest
		if *imagePath == "" {
			return nil, fmt.Errorf("-image is required for image requests")
		}
		img, err := os.ReadFile(*imagePath)
		if err != nil {
			return nil, err
		}
		payload["image_base64"] = base64.StdEncoding.EncodeToString(img)
	default:
		return nil, fmt.Errorf("unknown kind %q", *kind)
	}

	if *prompt != "" {
		payload["prompt"] = *prompt
	}
	if *system != "" {
		payload["system_prompt"] = *system
	}
	if event != protocol.EventImageRequest {
		if *maxTokens != 0 {
			payload["max_tokens"] = *maxTokens
		}
		if *temperature != 0 {
			payload["temperature"] = *temperature
		}
	}

	return protocol.NewMessage(event, uuid.NewString(), payload)
}
