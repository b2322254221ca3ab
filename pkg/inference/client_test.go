package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
		WithModels(Models{Generate: "gpt-3.5-turbo-instruct", Chat: "gpt-4o-mini", Vision: "gpt-4o"}),
		WithHostedMaxTokens(100),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientComplete(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completions" {
			t.Errorf("Expected /completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","choices":[{"text":"Hi!","index":0,"finish_reason":"stop"}]}`))
	})

	text, err := client.Complete(context.Background(), &CompletionRequest{
		Prompt:       "Say hi",
		SystemPrompt: "Be brief.",
		MaxTokens:    -1,
		Temperature:  0.7,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "Hi!" {
		t.Errorf("Unexpected text: %q", text)
	}

	if got["model"] != "gpt-3.5-turbo-instruct" {
		t.Errorf("model = %v", got["model"])
	}
	if got["max_tokens"] != float64(100) {
		t.Errorf("max_tokens = %v, want hosted default 100", got["max_tokens"])
	}
	prompt, _ := got["prompt"].(string)
	if !strings.HasPrefix(prompt, "Be brief.") || !strings.HasSuffix(prompt, "Say hi") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestClientChat(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "test-id",
			"model": "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"message":       map[string]string{"role": "assistant", "content": "Hello! How can I help?"},
					"finish_reason": "stop",
				},
			},
		})
	})

	text, err := client.Chat(context.Background(), &ChatRequest{
		Prompt:       "Hello",
		SystemPrompt: "You are helpful.",
		MaxTokens:    20,
		Temperature:  0.5,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if text != "Hello! How can I help?" {
		t.Errorf("Unexpected content: %s", text)
	}

	if got["max_tokens"] != float64(20) {
		t.Errorf("max_tokens = %v, want 20", got["max_tokens"])
	}
	if got["temperature"] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", got["temperature"])
	}
	messages, _ := got["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	first, _ := messages[0].(map[string]interface{})
	if first["role"] != "system" {
		t.Errorf("first role = %v", first["role"])
	}
}

func TestClientChatWithImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A PNG header."}}]}`))
	})

	text, err := client.ChatWithImage(context.Background(), &ImageChatRequest{
		ImageBase64:  raw,
		Prompt:       "What is this?",
		SystemPrompt: "You are a helpful assistant.",
	})
	if err != nil {
		t.Fatalf("ChatWithImage failed: %v", err)
	}
	if text != "A PNG header." {
		t.Errorf("Unexpected text: %q", text)
	}

	if got["model"] != "gpt-4o" {
		t.Errorf("Expected vision model gpt-4o, got %v", got["model"])
	}
	if got["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v, want 1000", got["max_tokens"])
	}
	if _, ok := got["temperature"]; ok {
		t.Error("Image call should not send temperature")
	}

	messages, _ := got["messages"].([]interface{})
	user, _ := messages[1].(map[string]interface{})
	parts, _ := user["content"].([]interface{})
	if len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %d", len(parts))
	}
	imagePart, _ := parts[1].(map[string]interface{})
	imageURL, _ := imagePart["image_url"].(map[string]interface{})
	if url, _ := imageURL["url"].(string); url != "data:image/png;base64,"+raw {
		t.Errorf("image url = %q", url)
	}
}

func TestClientError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Invalid API key",
				"code":    "invalid_api_key",
			},
		})
	})

	_, err := client.Chat(context.Background(), &ChatRequest{Prompt: "test"})
	if err == nil {
		t.Fatal("Expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Error("Expected IsUnauthorized() to be true")
	}
	if apiErr.Code != "invalid_api_key" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Message != "Invalid API key" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestClientNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{Prompt: "test"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestClientListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("Expected /models, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","created":1715367049,"owned_by":"system"}]}`))
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 || models[0].Name != "gpt-4o" {
		t.Errorf("Unexpected models: %+v", models)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(WithBaseURL("http://localhost:1")); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
}

func TestClientSendsZeroTemperature(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	if _, err := client.Chat(context.Background(), &ChatRequest{Prompt: "Hello", Temperature: 0}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	temp, ok := got["temperature"]
	if !ok || temp != float64(0) {
		t.Errorf("temperature = %v (present %v), want 0", temp, ok)
	}
}

func TestClientDefaultModels(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"text":"ok"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	if client.config.Models != HostedModels() {
		t.Errorf("Models = %+v, want %+v", client.config.Models, HostedModels())
	}
	if _, err := client.Complete(context.Background(), &CompletionRequest{Prompt: "Hi"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got["model"] != "gpt-3.5-turbo-instruct" {
		t.Errorf("model = %v, want gpt-3.5-turbo-instruct", got["model"])
	}
}
