package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/llm-relay/pkg/protocol"
)

// State is a request's position in its lifecycle.
type State int32

const (
	StateReceived State = iota
	StateAcknowledged
	StateInFlight
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAcknowledged:
		return "acknowledged"
	case StateInFlight:
		return "in_flight"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s is completed or failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Task is one relayed request. It resolves exactly once, to either the
// provider's text or an error.
type Task struct {
	// ID is unique per request.
	ID string

	// Event is the request event that created the task.
	Event protocol.Event

	// Origin is the session that sent the request.
	Origin string

	// CorrelationID is the client's own id for the request, if any.
	CorrelationID string

	// Received is when the request arrived.
	Received time.Time

	state atomic.Int32
	once  sync.Once
	done  chan struct{}
	text  string
	err   error
}

func newTask(event protocol.Event, origin, correlationID string) *Task {
	return &Task{
		ID:            uuid.NewString(),
		Event:         event,
		Origin:        origin,
		CorrelationID: correlationID,
		Received:      time.Now(),
		done:          make(chan struct{}),
	}
}

// State returns the task's current state.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) setState(s State) {
	t.state.Store(int32(s))
}

// resolve records the outcome. Later calls are ignored.
func (t *Task) resolve(text string, err error) {
	t.once.Do(func() {
		t.text, t.err = text, err
		if err != nil {
			t.setState(StateFailed)
		} else {
			t.setState(StateCompleted)
		}
		close(t.done)
	})
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (t *Task) Result() (string, error) {
	select {
	case <-t.done:
		return t.text, t.err
	default:
		return "", ErrPending
	}
}

// Wait blocks until the task resolves or ctx is done.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.text, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
