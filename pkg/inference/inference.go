// Package inference adapts relay requests to LLM backends.
//
// Three request kinds are supported: single-turn completion, system+user chat,
// and chat with one embedded image. Each backend (a local Ollama runtime or a
// hosted OpenAI-compatible API) builds its own payload and normalizes its own
// response envelope into plain text.
//
// Example usage:
//
//	p, _ := inference.NewOllama(
//	    inference.WithBaseURL("http://localhost:11434"),
//	    inference.WithModels(inference.Models{
//	        Generate: "llama3.2:1b",
//	        Chat:     "llama3.2:1b",
//	        Vision:   "gemma3:4b",
//	    }),
//	)
//	defer p.Close()
//
//	text, err := p.Chat(ctx, &inference.ChatRequest{
//	    Prompt:       "Hello!",
//	    SystemPrompt: "You are a helpful assistant.",
//	    MaxTokens:    -1,
//	    Temperature:  0.7,
//	})
package inference

import (
	"context"
	"time"
)

// Provider is the adapter interface every backend implements.
// Implementations are safe for concurrent use.
type Provider interface {
	// Name identifies the backend ("ollama", "openai", "mock").
	Name() string

	// Complete runs a single-turn generation and returns the generated text.
	Complete(ctx context.Context, req *CompletionRequest) (string, error)

	// Chat runs a system+user exchange and returns the assistant's reply.
	Chat(ctx context.Context, req *ChatRequest) (string, error)

	// ChatWithImage runs a system+user exchange where the user message carries
	// one image. Always uses the vision model.
	ChatWithImage(ctx context.Context, req *ImageChatRequest) (string, error)

	// ListModels returns the models the backend has available.
	ListModels(ctx context.Context) ([]Model, error)

	// Close releases any resources held by the provider.
	Close() error
}

// CompletionRequest is a single-turn generation request.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string

	// MaxTokens of -1 means no limit on the local runtime. The hosted
	// provider substitutes its configured default for any value <= 0.
	MaxTokens int

	Temperature float64
}

// ChatRequest is a system+user chat request.
type ChatRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// ImageChatRequest is a chat request with one base64-encoded image.
type ImageChatRequest struct {
	// ImageBase64 is standard base64, optionally wrapped in a data URL.
	ImageBase64  string
	Prompt       string
	SystemPrompt string
}

// Model describes one model the backend can serve.
type Model struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// Models holds the model identifier used for each request kind.
type Models struct {
	Generate string
	Chat     string
	Vision   string
}
