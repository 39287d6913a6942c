package jobqueue

import (
	"context"
	"sync"
)

// Transport moves envelopes from Enqueue to the queue's dispatcher.
// Subscribe blocks until ctx is done or the transport fails.
type Transport interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, deliver func(context.Context, Envelope)) error
	Close() error
}

// MemoryTransport is an unbounded in-process FIFO.
type MemoryTransport struct {
	mu      sync.Mutex
	backlog []Envelope
	notify  chan struct{}
	closed  bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{notify: make(chan struct{}, 1)}
}

func (t *MemoryTransport) Publish(_ context.Context, env Envelope) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.backlog = append(t.backlog, env)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

func (t *MemoryTransport) Subscribe(ctx context.Context, deliver func(context.Context, Envelope)) error {
	for {
		for _, env := range t.drain() {
			deliver(ctx, env)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.notify:
		}
	}
}

func (t *MemoryTransport) drain() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.backlog
	t.backlog = nil
	return out
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
