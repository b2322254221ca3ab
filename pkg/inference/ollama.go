package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const providerOllama = "ollama"

// Ollama talks to a local Ollama runtime over its native API.
// See https://github.com/ollama/ollama/blob/main/docs/api.md.
type Ollama struct {
	config *Config
	t      *transport
}

// NewOllama creates an Ollama provider.
func NewOllama(opts ...Option) (*Ollama, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Ollama{
		config: cfg,
		t:      newTransport(providerOllama, cfg),
	}, nil
}

// Name returns "ollama".
func (o *Ollama) Name() string { return providerOllama }

// Complete calls /api/generate in raw mode with an empty template, so the
// model sees the prompt verbatim without chat formatting.
func (o *Ollama) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	payload := ollamaGenerateRequest{
		Model:    o.config.Models.Generate,
		Prompt:   req.Prompt,
		System:   req.SystemPrompt,
		Template: "",
		Raw:      true,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: floatPtr(req.Temperature),
			NumPredict:  intPtr(req.MaxTokens),
		},
	}

	o.t.logger.Info("requesting completion",
		"model", payload.Model,
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	)

	return o.call(ctx, "/api/generate", payload)
}

// Chat calls /api/chat with a system and a user message.
func (o *Ollama) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	payload := ollamaChatRequest{
		Model:    o.config.Models.Chat,
		Messages: toOllamaMessages(exchange(req.SystemPrompt, NewUserMessage(req.Prompt))),
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: floatPtr(req.Temperature),
			NumPredict:  intPtr(req.MaxTokens),
		},
	}

	return o.call(ctx, "/api/chat", payload)
}

// ChatWithImage calls /api/chat on the vision model with the image attached
// to the user message.
func (o *Ollama) ChatWithImage(ctx context.Context, req *ImageChatRequest) (string, error) {
	b64, _, err := NormalizeImage(req.ImageBase64)
	if err != nil {
		return "", WrapError(providerOllama, err)
	}

	payload := ollamaChatRequest{
		Model:    o.config.Models.Vision,
		Messages: toOllamaMessages(exchange(req.SystemPrompt, NewVisionMessage(req.Prompt, b64))),
		Stream:   false,
	}
	if o.config.ImageMaxTokens > 0 {
		payload.Options = &ollamaOptions{NumPredict: intPtr(o.config.ImageMaxTokens)}
	}

	return o.call(ctx, "/api/chat", payload)
}

// ListModels calls /api/tags.
func (o *Ollama) ListModels(ctx context.Context) ([]Model, error) {
	body, err := o.t.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}

	var result ollamaTagsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	models := make([]Model, len(result.Models))
	for i, m := range result.Models {
		models[i] = Model{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt}
	}
	return models, nil
}

// Close releases idle connections.
func (o *Ollama) Close() error {
	o.t.close()
	return nil
}

func (o *Ollama) call(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := o.t.post(ctx, path, payload)
	if err != nil {
		return "", err
	}
	text, err := ExtractText(body)
	if err != nil {
		return "", WrapError(providerOllama, err)
	}
	return text, nil
}

func toOllamaMessages(msgs []Message) []ollamaMessage {
	out := make([]ollamaMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ollamaMessage{Role: string(m.Role), Content: m.Content, Images: m.Images}
	}
	return out
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }

// Ollama API types

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model    string         `json:"model"`
	Prompt   string         `json:"prompt"`
	System   string         `json:"system,omitempty"`
	Template string         `json:"template"`
	Raw      bool           `json:"raw"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Model      string    `json:"model"`
		Size       int64     `json:"size"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

// Verify Ollama implements Provider at compile time.
var _ Provider = (*Ollama)(nil)
