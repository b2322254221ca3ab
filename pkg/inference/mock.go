package inference

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// CompleteFunc is called when Complete is invoked.
	CompleteFunc func(ctx context.Context, req *CompletionRequest) (string, error)

	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, req *ChatRequest) (string, error)

	// ImageFunc is called when ChatWithImage is invoked.
	ImageFunc func(ctx context.Context, req *ImageChatRequest) (string, error)

	// ListModelsFunc is called when ListModels is invoked.
	ListModelsFunc func(ctx context.Context) ([]Model, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation and its request.
type MockCall struct {
	Method  string
	Request interface{}
	Time    time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		CompleteFunc: func(ctx context.Context, req *CompletionRequest) (string, error) {
			return "Mock completion", nil
		},
		ChatFunc: func(ctx context.Context, req *ChatRequest) (string, error) {
			return "Mock response", nil
		},
		ImageFunc: func(ctx context.Context, req *ImageChatRequest) (string, error) {
			return "I see a mock image", nil
		},
		ListModelsFunc: func(ctx context.Context) ([]Model, error) {
			return []Model{{Name: "mock:latest"}}, nil
		},
	}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Complete calls CompleteFunc and records the call.
func (m *Mock) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	m.record("Complete", req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", WrapError("mock", ErrProviderUnavailable)
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	m.record("Chat", req)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return "", WrapError("mock", ErrProviderUnavailable)
}

// ChatWithImage calls ImageFunc and records the call.
func (m *Mock) ChatWithImage(ctx context.Context, req *ImageChatRequest) (string, error) {
	m.record("ChatWithImage", req)
	if m.ImageFunc != nil {
		return m.ImageFunc(ctx, req)
	}
	return "", WrapError("mock", ErrProviderUnavailable)
}

// ListModels calls ListModelsFunc and records the call.
func (m *Mock) ListModels(ctx context.Context) ([]Model, error) {
	m.record("ListModels", nil)
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string, req interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:  method,
		Request: req,
		Time:    time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		CompleteFunc: func(ctx context.Context, req *CompletionRequest) (string, error) {
			return "", err
		},
		ChatFunc: func(ctx context.Context, req *ChatRequest) (string, error) {
			return "", err
		},
		ImageFunc: func(ctx context.Context, req *ImageChatRequest) (string, error) {
			return "", err
		},
		ListModelsFunc: func(ctx context.Context) ([]Model, error) {
			return nil, err
		},
	}
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
