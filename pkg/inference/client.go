package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const providerOpenAI = "openai"

// Client is the hosted-provider adapter.
// Works with any OpenAI-compatible API (OpenAI, Together, Groq, vLLM, etc.).
type Client struct {
	config *Config
	t      *transport
}

// NewClient creates a hosted-provider client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.openai.com/v1"
	cfg.Models = HostedModels()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		t:      newTransport(providerOpenAI, cfg),
	}, nil
}

// Name returns "openai".
func (c *Client) Name() string { return providerOpenAI }

// Complete calls the legacy /completions endpoint. It has no system field,
// so a system prompt is prepended to the prompt text.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}

	payload := map[string]interface{}{
		"model":       c.config.Models.Generate,
		"prompt":      prompt,
		"max_tokens":  c.maxTokens(req.MaxTokens),
		"temperature": req.Temperature,
	}

	c.t.logger.Info("requesting completion",
		"model", c.config.Models.Generate,
		"max_tokens", payload["max_tokens"],
		"temperature", req.Temperature,
	)

	return c.call(ctx, "/completions", payload)
}

// Chat calls /chat/completions with a system and a user message.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	msgs := exchange(req.SystemPrompt, NewUserMessage(req.Prompt))
	messages := make([]map[string]interface{}, len(msgs))
	for i, m := range msgs {
		messages[i] = map[string]interface{}{
			"role":    string(m.Role),
			"content": m.Content,
		}
	}

	payload := map[string]interface{}{
		"model":       c.config.Models.Chat,
		"messages":    messages,
		"max_tokens":  c.maxTokens(req.MaxTokens),
		"temperature": req.Temperature,
	}

	return c.call(ctx, "/chat/completions", payload)
}

// ChatWithImage calls /chat/completions on the vision model with the image as
// an image_url content part.
func (c *Client) ChatWithImage(ctx context.Context, req *ImageChatRequest) (string, error) {
	b64, data, err := NormalizeImage(req.ImageBase64)
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}

	content := []map[string]interface{}{
		{"type": "text", "text": req.Prompt},
		{
			"type": "image_url",
			"image_url": map[string]string{
				"url": DataURL(b64, data),
			},
		},
	}

	payload := map[string]interface{}{
		"model": c.config.Models.Vision,
		"messages": []map[string]interface{}{
			{"role": string(RoleSystem), "content": req.SystemPrompt},
			{"role": string(RoleUser), "content": content},
		},
		"max_tokens": c.maxTokens(c.config.ImageMaxTokens),
	}

	return c.call(ctx, "/chat/completions", payload)
}

// ListModels calls /models.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	body, err := c.t.get(ctx, "/models")
	if err != nil {
		return nil, err
	}

	var result modelListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	models := make([]Model, len(result.Data))
	for i, m := range result.Data {
		models[i] = Model{Name: m.ID}
		if m.Created > 0 {
			models[i].ModifiedAt = time.Unix(m.Created, 0).UTC()
		}
	}
	return models, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.t.close()
	return nil
}

// maxTokens substitutes the hosted default for the local "no limit" sentinel.
func (c *Client) maxTokens(n int) int {
	if n <= 0 {
		return c.config.HostedMaxTokens
	}
	return n
}

func (c *Client) call(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := c.t.post(ctx, path, payload)
	if err != nil {
		return "", err
	}
	text, err := ExtractText(body)
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}
	return text, nil
}

// API response types
type modelListResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// Verify Client implements Provider at compile time.
var _ Provider = (*Client)(nil)
