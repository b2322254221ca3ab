// Package relay turns inbound request events into provider calls and
// publishes each outcome back to the sessions.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/llm-relay/internal/log"
	"github.com/teslashibe/llm-relay/pkg/hub"
	"github.com/teslashibe/llm-relay/pkg/inference"
	"github.com/teslashibe/llm-relay/pkg/metrics"
	"github.com/teslashibe/llm-relay/pkg/protocol"
)

var (
	// ErrPending is returned by Task.Result before the task resolves.
	ErrPending = errors.New("relay: task still pending")

	// ErrTimeout is returned when the provider does not answer within the
	// request timeout.
	ErrTimeout = errors.New("relay: request timed out")

	// ErrClosed is returned for requests cut short by shutdown.
	ErrClosed = errors.New("relay: dispatcher closed")
)

// Scope selects which sessions receive a response.
type Scope string

const (
	ScopeAll    Scope = "all"    // Every connected session
	ScopeOrigin Scope = "origin" // Only the requesting session
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 2 * time.Minute

// Session is the requesting end of a websocket connection.
type Session interface {
	SessionID() string
	Send(msg hub.Message) bool
}

// Publisher delivers responses to sessions.
type Publisher interface {
	Broadcast(msg hub.Message) bool
	SendTo(id string, msg hub.Message) bool
}

// Config configures a Dispatcher.
type Config struct {
	Defaults protocol.Defaults
	Timeout  time.Duration
	Scope    Scope
	Logger   *slog.Logger
}

// Dispatcher relays request events to a provider. Each request runs in its
// own goroutine, so responses are published in completion order.
type Dispatcher struct {
	provider inference.Provider
	pub      Publisher
	defaults protocol.Defaults
	timeout  time.Duration
	scope    Scope
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
}

// New creates a Dispatcher.
func New(provider inference.Provider, pub Publisher, cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Scope == "" {
		cfg.Scope = ScopeAll
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("relay")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		provider: provider,
		pub:      pub,
		defaults: cfg.Defaults,
		timeout:  cfg.Timeout,
		scope:    cfg.Scope,
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle processes one inbound frame from s. Request events are acked to s
// before the provider call starts and return the running Task. Anything
// else is answered with an error event and returns nil.
func (d *Dispatcher) Handle(s Session, data []byte) *Task {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		d.logger.Warn("malformed frame", "session", s.SessionID(), "error", err)
		metrics.Reject("malformed")
		s.Send(hub.TextMessage(protocol.EventError, "", err.Error()))
		return nil
	}
	if !msg.Event.IsRequest() {
		d.logger.Warn("unknown event", "session", s.SessionID(), "event", msg.Event)
		metrics.Reject("unknown_event")
		err := fmt.Errorf("%w %q", protocol.ErrUnknownEvent, msg.Event)
		s.Send(hub.TextMessage(protocol.EventError, msg.ID, err.Error()))
		return nil
	}

	return d.Submit(s, msg)
}

// Submit acks a parsed request to s and starts relaying it. After Close it
// answers s with an error event and returns nil.
func (d *Dispatcher) Submit(s Session, msg *protocol.Message) *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("request after close", "session", s.SessionID(), "event", msg.Event)
		metrics.Reject("closed")
		s.Send(hub.TextMessage(protocol.EventError, msg.ID, ErrClosed.Error()))
		return nil
	}

	t := newTask(msg.Event, s.SessionID(), msg.ID)
	logger := d.logger.With("task", t.ID, "session", t.Origin, "event", t.Event)
	logger.Info("request received")

	// The ack is queued on the origin before the task can publish anything.
	if !s.Send(hub.TextMessage(protocol.EventAck, msg.ID, protocol.AckText(msg.Event))) {
		logger.Warn("ack not delivered")
	}
	t.setState(StateAcknowledged)

	d.wg.Add(1)
	go d.run(t, msg.Data, logger)
	return t
}

func (d *Dispatcher) run(t *Task, data json.RawMessage, logger *slog.Logger) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	t.setState(StateInFlight)
	start := time.Now()
	text, err := d.call(ctx, t.Event, data, logger)
	took := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
			err = fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
		case errors.Is(err, context.Canceled) && d.ctx.Err() != nil:
			err = ErrClosed
		}
		logger.Error("request failed", "error", err, "duration", took)
		if hint := providerHint(err); hint != "" {
			logger.Warn(hint, "provider", d.provider.Name())
		}
		metrics.ObserveRequest(d.provider.Name(), string(t.Event), metrics.OutcomeFailed, took)
		d.publish(t, protocol.ErrorText(err), logger)
		t.resolve("", err)
		return
	}

	logger.Info("request completed", "duration", took, "chars", len(text))
	logger.Debug("response text", "text", text)
	metrics.ObserveRequest(d.provider.Name(), string(t.Event), metrics.OutcomeCompleted, took)
	d.publish(t, text, logger)
	t.resolve(text, nil)
}

func (d *Dispatcher) call(ctx context.Context, event protocol.Event, data json.RawMessage, logger *slog.Logger) (string, error) {
	switch event {
	case protocol.EventCompletionRequest:
		req, err := protocol.DecodeCompletion(data, d.defaults.Completion)
		if err != nil {
			return "", err
		}
		logger.Debug("completion request", "prompt", req.Prompt, "max_tokens", req.MaxTokens, "temperature", req.Temperature)
		return d.provider.Complete(ctx, req)

	case protocol.EventChatRequest:
		req, err := protocol.DecodeChat(data, d.defaults.Chat)
		if err != nil {
			return "", err
		}
		logger.Debug("chat request", "prompt", req.Prompt, "max_tokens", req.MaxTokens, "temperature", req.Temperature)
		return d.provider.Chat(ctx, req)

	case protocol.EventImageRequest:
		req, err := protocol.DecodeImage(data, d.defaults.Image)
		if err != nil {
			return "", err
		}
		// The image itself is too large to log.
		logger.Debug("image request", "prompt", req.Prompt, "image_bytes", len(req.ImageBase64))
		return d.provider.ChatWithImage(ctx, req)
	}
	return "", fmt.Errorf("relay: unsupported event %q", event)
}

// providerHint names the likely operator fix for a provider rejection.
func providerHint(err error) string {
	var apiErr *inference.APIError
	if !errors.As(err, &apiErr) {
		return ""
	}
	switch {
	case apiErr.IsNotFound():
		return "model not pulled on the provider"
	case apiErr.IsUnauthorized():
		return "provider rejected the credential, check the API key"
	case apiErr.IsServerError():
		return "provider server error"
	}
	return ""
}

func (d *Dispatcher) publish(t *Task, text string, logger *slog.Logger) {
	event, _ := protocol.ResponseEvent(t.Event)
	msg := hub.TextMessage(event, t.CorrelationID, text)

	var ok bool
	if d.scope == ScopeOrigin {
		ok = d.pub.SendTo(t.Origin, msg)
	} else {
		ok = d.pub.Broadcast(msg)
	}
	if !ok {
		logger.Warn("response not delivered", "scope", d.scope)
	}
}

// Close cancels in-flight requests and waits for their outcomes to be
// published. Requests submitted afterwards are refused.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// Wait blocks until every in-flight request has resolved.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
