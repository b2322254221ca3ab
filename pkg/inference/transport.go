package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 32 << 20

// transport is the JSON-over-HTTP plumbing shared by the providers.
type transport struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

func newTransport(provider string, cfg *Config) *transport {
	return &transport{
		provider: provider,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		http:     cfg.httpClient(),
		logger:   cfg.Logger.With("component", "inference."+provider),
	}
}

// post sends payload as JSON and returns the raw response body.
func (t *transport) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(t.provider, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(t.provider, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

// get issues a GET and returns the raw response body.
func (t *transport) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, WrapError(t.provider, fmt.Errorf("create request: %w", err))
	}
	return t.do(req)
}

func (t *transport) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	t.logger.Debug("provider request", "method", req.Method, "path", req.URL.Path)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, WrapError(t.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, WrapError(t.provider, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, t.parseError(resp.StatusCode, body)
	}
	return body, nil
}

// parseError understands both {"error": "msg"} (Ollama) and
// {"error": {"message": "...", "code": "..."}} (OpenAI).
func (t *transport) parseError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	code := ""

	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && len(errResp.Error) > 0 {
		if msg := errorText(errResp.Error); msg != "" {
			message = msg
		}
		var detail struct {
			Code json.RawMessage `json:"code"`
		}
		if json.Unmarshal(errResp.Error, &detail) == nil && len(detail.Code) > 0 && string(detail.Code) != "null" {
			code = strings.Trim(string(detail.Code), `"`)
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}

	return &APIError{
		StatusCode: status,
		Message:    message,
		Code:       code,
		Provider:   t.provider,
	}
}

func (t *transport) close() {
	t.http.CloseIdleConnections()
}
