package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-System/pkg/jobqueue"
)

const SeatJobType = "reserve_seat"

// SeatService reserves seats from the shared seat counter. Mutations only
// happen inside the reserve_seat processor, which the queue runs one job at
// a time; the gate it owns stops new jobs once the seats run out.
type SeatService struct {
	log      *slog.Logger
	store    CounterStore
	queue    JobQueue
	recorder ReservationRecorder
	gate     *domain.Gate
	initial  int64

	startOnce sync.Once
	startErr  error
}

func NewSeatService(log *slog.Logger, store CounterStore, queue JobQueue, recorder ReservationRecorder, initialSeats int64) *SeatService {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &SeatService{
		log:      log,
		store:    store,
		queue:    queue,
		recorder: recorder,
		gate:     domain.NewGate(),
		initial:  initialSeats,
	}
}

// Seed resets the seat counter to the configured number of seats.
func (s *SeatService) Seed(ctx context.Context) error {
	if err := s.store.Set(ctx, domain.SeatCounterKey, s.initial); err != nil {
		return fmt.Errorf("seed seats: %w", err)
	}
	s.log.Info("seat counter seeded", "seats", s.initial)
	return nil
}

// AvailableSeats reads the seat counter, falling back to the configured
// number of seats when it was never written.
func (s *SeatService) AvailableSeats(ctx context.Context) (int64, error) {
	n, found, err := s.store.Get(ctx, domain.SeatCounterKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return s.initial, nil
	}
	return n, nil
}

func (s *SeatService) ReservationsEnabled() bool { return s.gate.Open() }

// Reserve enqueues a reserve_seat job and returns before it is processed.
func (s *SeatService) Reserve(ctx context.Context) (*jobqueue.Job, error) {
	if !s.gate.Open() {
		return nil, domain.ErrReservationsBlocked
	}
	job, err := s.queue.Enqueue(ctx, SeatJobType, nil)
	if err != nil {
		s.log.Error("seat reservation enqueue failed", "err", err)
		return nil, err
	}
	job.Observe(func(ev jobqueue.Event) {
		switch ev.Kind {
		case jobqueue.EventComplete:
			s.log.Info(fmt.Sprintf("Seat reservation job %s completed", ev.JobID), "job_id", ev.JobID)
		case jobqueue.EventFailed:
			s.log.Info(fmt.Sprintf("Seat reservation job %s failed: %v", ev.JobID, ev.Err), "job_id", ev.JobID)
		}
	})
	return job, nil
}

// StartProcessing subscribes the seat processor to the queue. Repeated calls
// are no-ops.
func (s *SeatService) StartProcessing() error {
	s.startOnce.Do(func() {
		err := s.queue.Register(SeatJobType, s.process)
		if errors.Is(err, jobqueue.ErrProcessorRegistered) {
			err = nil
		}
		s.startErr = err
	})
	return s.startErr
}

func (s *SeatService) process(ctx context.Context, job *jobqueue.Job) error {
	available, err := s.AvailableSeats(ctx)
	if err != nil {
		return err
	}
	if available <= 0 {
		s.closeGate(job.ID)
		return fmt.Errorf("not enough seats available: %w", domain.ErrInsufficientInventory)
	}

	remaining := available - 1
	if err := s.store.Set(ctx, domain.SeatCounterKey, remaining); err != nil {
		return err
	}
	if remaining == 0 {
		s.closeGate(job.ID)
	}

	r := domain.Reservation{
		ID:         job.ID,
		Kind:       domain.KindSeat,
		CounterKey: domain.SeatCounterKey,
		Remaining:  remaining,
		CreatedAt:  time.Now().UTC(),
	}
	record(ctx, s.log, s.recorder, r, domain.EventSeatReserved, domain.SeatReserved{ReservationID: job.ID, Remaining: remaining})
	return nil
}

func (s *SeatService) closeGate(jobID string) {
	if s.gate.Close() {
		s.log.Warn("seat reservations blocked", "job_id", jobID)
	}
}
