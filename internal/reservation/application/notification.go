package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-System/pkg/jobqueue"
)

const NotificationJobType = "push_notification_code_3"

var errJobsNotArray = fmt.Errorf("jobs is not an array: %w", domain.ErrInvalidInput)

type NotificationService struct {
	log       *slog.Logger
	queue     JobQueue
	blacklist map[string]struct{}

	startOnce sync.Once
	startErr  error
}

func NewNotificationService(log *slog.Logger, queue JobQueue, blacklist []string) *NotificationService {
	bl := make(map[string]struct{}, len(blacklist))
	for _, n := range blacklist {
		bl[n] = struct{}{}
	}
	return &NotificationService{log: log, queue: queue, blacklist: bl}
}

// CreateJobs enqueues one notification job per element of the JSON array
// raw. Elements are passed through as job payloads unchanged. Anything but
// an array is rejected before a job is created.
func (s *NotificationService) CreateJobs(ctx context.Context, raw json.RawMessage) ([]*jobqueue.Job, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errJobsNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, errJobsNotArray
	}

	jobs := make([]*jobqueue.Job, 0, len(entries))
	for _, entry := range entries {
		job, err := s.queue.Enqueue(ctx, NotificationJobType, entry)
		if err != nil {
			return jobs, err
		}
		s.log.Info(fmt.Sprintf("Notification job created: %s", job.ID), "job_id", job.ID)
		job.Observe(s.logEvent)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *NotificationService) logEvent(ev jobqueue.Event) {
	switch ev.Kind {
	case jobqueue.EventComplete:
		s.log.Info(fmt.Sprintf("Notification job %s completed", ev.JobID), "job_id", ev.JobID)
	case jobqueue.EventFailed:
		s.log.Info(fmt.Sprintf("Notification job %s failed: %v", ev.JobID, ev.Err), "job_id", ev.JobID)
	case jobqueue.EventProgress:
		s.log.Info(fmt.Sprintf("Notification job %s %d%% complete", ev.JobID, ev.Progress), "job_id", ev.JobID)
	}
}

func (s *NotificationService) StartProcessing() error {
	s.startOnce.Do(func() {
		err := s.queue.Register(NotificationJobType, s.send)
		if errors.Is(err, jobqueue.ErrProcessorRegistered) {
			err = nil
		}
		s.startErr = err
	})
	return s.startErr
}

func (s *NotificationService) send(_ context.Context, job *jobqueue.Job) error {
	var n domain.Notification
	if err := json.Unmarshal(job.Payload(), &n); err != nil {
		return fmt.Errorf("notification payload: %w", domain.ErrInvalidInput)
	}

	job.Progress(0)
	if _, ok := s.blacklist[n.PhoneNumber]; ok {
		return fmt.Errorf("%w: %s", domain.ErrBlacklisted, n.PhoneNumber)
	}
	job.Progress(50)
	s.log.Info(fmt.Sprintf("Sending notification to %s, with message: %s", n.PhoneNumber, n.Message), "job_id", job.ID)
	return nil
}
