package application

import (
	"context"
	"encoding/json"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-System/pkg/jobqueue"
)

// CounterStore holds integer counters by key. Get reports found=false for a
// key that was never set, which is distinct from a stored zero.
type CounterStore interface {
	Get(ctx context.Context, key string) (value int64, found bool, err error)
	Set(ctx context.Context, key string, value int64) error
	// DecrementIfPositive atomically reads key (initial when absent) and, if
	// it is above zero, stores it minus one. ok is false when nothing changed.
	DecrementIfPositive(ctx context.Context, key string, initial int64) (remaining int64, ok bool, err error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload json.RawMessage) (*jobqueue.Job, error)
	Register(jobType string, h jobqueue.Handler) error
}

// ReservationRecorder persists a confirmed reservation with its outgoing event.
type ReservationRecorder interface {
	RecordWithOutbox(ctx context.Context, r domain.Reservation, eventType string, payload []byte, headers map[string]string, traceparent string) error
}

type NoopRecorder struct{}

func (NoopRecorder) RecordWithOutbox(context.Context, domain.Reservation, string, []byte, map[string]string, string) error {
	return nil
}
