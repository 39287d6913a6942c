package jobqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateCreated  State = "created"
	StateActive   State = "active"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

type EventKind string

const (
	EventComplete EventKind = "complete"
	EventFailed   EventKind = "failed"
	EventProgress EventKind = "progress"
)

// Event is a lifecycle notification delivered to job observers.
type Event struct {
	Kind     EventKind
	JobID    string
	Type     string
	Progress int
	Err      error
}

// Job is the handle returned by Enqueue. Its payload never changes after
// creation; its state moves Created -> Active -> Complete|Failed once.
type Job struct {
	ID        string
	Type      string
	CreatedAt time.Time

	payload json.RawMessage
	// spanCtx is the trace the job was enqueued under; the processing span
	// continues it.
	spanCtx trace.SpanContext

	mu        sync.Mutex
	state     State
	progress  int
	err       error
	observers []func(Event)
	done      chan struct{}
}

func newJob(id, jobType string, payload json.RawMessage, createdAt time.Time) *Job {
	var p json.RawMessage
	if len(payload) > 0 {
		p = append(json.RawMessage(nil), payload...)
	}
	return &Job{
		ID:        id,
		Type:      jobType,
		CreatedAt: createdAt,
		payload:   p,
		state:     StateCreated,
		done:      make(chan struct{}),
	}
}

// Payload returns a copy of the job payload.
func (j *Job) Payload() json.RawMessage {
	if j.payload == nil {
		return nil
	}
	return append(json.RawMessage(nil), j.payload...)
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure reason once the job is Failed, nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job reaches a terminal state and returns its result.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observe registers fn for lifecycle events. If the job already finished,
// fn receives the terminal event immediately.
func (j *Job) Observe(fn func(Event)) {
	j.mu.Lock()
	if !j.state.Terminal() {
		j.observers = append(j.observers, fn)
		j.mu.Unlock()
		return
	}
	ev := j.terminalEventLocked()
	j.mu.Unlock()
	fn(ev)
}

// Progress records handler progress in percent and notifies observers.
func (j *Job) Progress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	j.mu.Lock()
	if j.state != StateActive {
		j.mu.Unlock()
		return
	}
	j.progress = percent
	observers := append([]func(Event){}, j.observers...)
	j.mu.Unlock()

	ev := Event{Kind: EventProgress, JobID: j.ID, Type: j.Type, Progress: percent}
	for _, fn := range observers {
		fn(ev)
	}
}

func (j *Job) activate() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateCreated {
		return false
	}
	j.state = StateActive
	return true
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	if err != nil {
		j.state = StateFailed
		j.err = err
	} else {
		j.state = StateComplete
		j.progress = 100
	}
	ev := j.terminalEventLocked()
	observers := j.observers
	j.observers = nil
	close(j.done)
	j.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}

func (j *Job) terminalEventLocked() Event {
	if j.state == StateFailed {
		return Event{Kind: EventFailed, JobID: j.ID, Type: j.Type, Progress: j.progress, Err: j.err}
	}
	return Event{Kind: EventComplete, JobID: j.ID, Type: j.Type, Progress: 100}
}

// Envelope is the wire form of a job carried by a Transport.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

func (j *Job) envelope() Envelope {
	return Envelope{ID: j.ID, Type: j.Type, Payload: j.payload, CreatedAt: j.CreatedAt.UnixMilli()}
}

func jobFromEnvelope(env Envelope) *Job {
	return newJob(env.ID, env.Type, env.Payload, time.UnixMilli(env.CreatedAt).UTC())
}
