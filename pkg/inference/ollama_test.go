package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *Ollama {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	o, err := NewOllama(WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestOllamaComplete(t *testing.T) {
	var got map[string]interface{}
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected /api/generate, got %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":    "llama3.2:1b",
			"response": "this is a test",
			"done":     true,
		})
	})

	text, err := o.Complete(context.Background(), &CompletionRequest{
		Prompt:       "Say hi",
		SystemPrompt: "You are a helpful assistant.",
		MaxTokens:    -1,
		Temperature:  0.9,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "this is a test" {
		t.Errorf("Unexpected text: %q", text)
	}

	if got["model"] != "llama3.2:1b" {
		t.Errorf("model = %v", got["model"])
	}
	if got["raw"] != true {
		t.Error("Expected raw mode")
	}
	if got["stream"] != false {
		t.Error("Expected stream=false")
	}
	if tmpl, ok := got["template"]; !ok || tmpl != "" {
		t.Errorf("Expected empty template to be sent, got %v (present=%v)", tmpl, ok)
	}
	if got["system"] != "You are a helpful assistant." {
		t.Errorf("system = %v", got["system"])
	}

	opts, _ := got["options"].(map[string]interface{})
	if opts["temperature"] != 0.9 {
		t.Errorf("temperature = %v, want 0.9", opts["temperature"])
	}
	if opts["num_predict"] != float64(-1) {
		t.Errorf("num_predict = %v, want -1", opts["num_predict"])
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaChatRequest
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "Good morrow, friend."},
			"done":    true,
		})
	})

	text, err := o.Chat(context.Background(), &ChatRequest{
		Prompt:       "hi",
		SystemPrompt: "You are William Shakespeare.",
		MaxTokens:    50,
		Temperature:  0.7,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if text != "Good morrow, friend." {
		t.Errorf("Unexpected text: %q", text)
	}

	if len(got.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "You are William Shakespeare." {
		t.Errorf("system message = %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "hi" {
		t.Errorf("user message = %+v", got.Messages[1])
	}
	if got.Stream {
		t.Error("Expected stream=false")
	}
	if got.Options == nil || got.Options.NumPredict == nil || *got.Options.NumPredict != 50 {
		t.Errorf("num_predict not forwarded: %+v", got.Options)
	}
}

func TestOllamaChatWithImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	var got ollamaChatRequest
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "A tiny PNG."},
		})
	})

	text, err := o.ChatWithImage(context.Background(), &ImageChatRequest{
		ImageBase64:  "data:image/png;base64," + raw,
		Prompt:       "What is this?",
		SystemPrompt: "You are a helpful assistant.",
	})
	if err != nil {
		t.Fatalf("ChatWithImage failed: %v", err)
	}
	if text != "A tiny PNG." {
		t.Errorf("Unexpected text: %q", text)
	}

	if got.Model != "gemma3:4b" {
		t.Errorf("Expected vision model, got %s", got.Model)
	}
	if len(got.Messages) != 2 || len(got.Messages[1].Images) != 1 {
		t.Fatalf("Expected one image on the user message: %+v", got.Messages)
	}
	if got.Messages[1].Images[0] != raw {
		t.Error("Image should be sent as bare base64")
	}
	if got.Options == nil || got.Options.Temperature != nil {
		t.Errorf("Image call should cap tokens and omit temperature: %+v", got.Options)
	}
}

func TestOllamaChatWithImageInvalid(t *testing.T) {
	called := false
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := o.ChatWithImage(context.Background(), &ImageChatRequest{ImageBase64: "%%%"})
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
	if called {
		t.Error("Invalid image should not reach the provider")
	}
}

func TestOllamaModelNotFound(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'llama3.2:1b' not found"})
	})

	_, err := o.Chat(context.Background(), &ChatRequest{Prompt: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsNotFound() {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "model 'llama3.2:1b' not found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Provider != "ollama" {
		t.Errorf("Provider = %q", apiErr.Provider)
	}
}

func TestOllamaMalformedResponse(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"done":true}`))
	})

	_, err := o.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestOllamaTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	o, _ := NewOllama(WithBaseURL(url))
	defer o.Close()

	_, err := o.Chat(context.Background(), &ChatRequest{Prompt: "hi"})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ProviderError, got %T: %v", err, err)
	}
}

func TestOllamaContextCancel(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := o.Chat(ctx, &ChatRequest{Prompt: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestOllamaListModels(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected /api/tags, got %s", r.URL.Path)
		}
		if r.Method != "GET" {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		w.Write([]byte(`{"models":[
			{"name":"llama3.2:1b","model":"llama3.2:1b","size":1321098329,"modified_at":"2025-01-10T12:00:00Z"},
			{"name":"gemma3:4b","model":"gemma3:4b","size":3338801804}
		]}`))
	})

	models, err := o.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(models))
	}
	if models[0].Name != "llama3.2:1b" || models[1].Name != "gemma3:4b" {
		t.Errorf("Unexpected models: %+v", models)
	}
	if models[0].ModifiedAt.IsZero() {
		t.Error("Expected modified_at to be parsed")
	}
}
