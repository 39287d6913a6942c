// Package memory is a process-local counter store for tests and single-node
// runs without redis.
package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
)

type CounterStore struct {
	mu sync.Mutex
	m  map[string]int64
}

func NewCounterStore() *CounterStore {
	return &CounterStore{m: make(map[string]int64)}
}

func (s *CounterStore) Get(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *CounterStore) Set(_ context.Context, key string, value int64) error {
	if value < 0 {
		return domain.ErrNegativeCounter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *CounterStore) DecrementIfPositive(_ context.Context, key string, initial int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		v = initial
	}
	if v <= 0 {
		return v, false, nil
	}
	v--
	s.m[key] = v
	return v, true, nil
}
