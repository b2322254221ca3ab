package inference

import (
	"encoding/json"
	"fmt"
)

// envelope is the union of every response shape the relay understands:
//
//	{"response": "..."}                              Ollama /api/generate
//	{"message": {"content": "..."}}                  Ollama /api/chat
//	{"choices": [{"text": "..."}]}                   OpenAI /completions
//	{"choices": [{"message": {"content": "..."}}]}   OpenAI /chat/completions
type envelope struct {
	Response *string          `json:"response"`
	Message  *envelopeMessage `json:"message"`
	Choices  []struct {
		Text    *string          `json:"text"`
		Message *envelopeMessage `json:"message"`
	} `json:"choices"`

	// Ollama reports some failures as {"error": "..."} bodies.
	Error json.RawMessage `json:"error"`
}

type envelopeMessage struct {
	Content *string `json:"content"`
}

// ExtractText normalizes a provider response body into the model's text answer.
// A body that parses but carries no recognizable text field yields
// ErrMalformedResponse. An empty string is a valid answer.
func ExtractText(body []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if msg := errorText(env.Error); msg != "" {
		return "", fmt.Errorf("%w: provider error: %s", ErrMalformedResponse, msg)
	}

	if env.Choices != nil {
		if len(env.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
		}
		first := env.Choices[0]
		if first.Message != nil && first.Message.Content != nil {
			return *first.Message.Content, nil
		}
		if first.Text != nil {
			return *first.Text, nil
		}
		return "", fmt.Errorf("%w: choice has neither text nor message content", ErrMalformedResponse)
	}

	if env.Message != nil && env.Message.Content != nil {
		return *env.Message.Content, nil
	}
	if env.Response != nil {
		return *env.Response, nil
	}

	return "", fmt.Errorf("%w: no response, message or choices field", ErrMalformedResponse)
}

// errorText reads either {"error": "msg"} or {"error": {"message": "msg"}}.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Message
	}
	return string(raw)
}
