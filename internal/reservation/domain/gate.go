package domain

import "sync/atomic"

// Gate admits reservations until it is closed. It is closed at most once
// and never reopened.
type Gate struct {
	closed atomic.Bool
}

func NewGate() *Gate { return &Gate{} }

func (g *Gate) Open() bool { return !g.closed.Load() }

// Close reports whether this call was the one that closed the gate.
func (g *Gate) Close() bool { return g.closed.CompareAndSwap(false, true) }
