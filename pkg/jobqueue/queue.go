// Package jobqueue is an asynchronous job queue with named job types, one
// processor per type and per-job lifecycle tracking.
//
// Jobs of one type are handled one at a time in the order the transport
// delivers them, which is enqueue order for both bundled transports.
package jobqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes one Active job. A nil return completes the job, an
// error fails it. Handlers may report progress through job.Progress.
type Handler func(ctx context.Context, job *Job) error

type lane struct {
	jobType string
	handler Handler
	backlog []*Job
	notify  chan struct{}
	running bool
}

type Queue struct {
	log       *slog.Logger
	transport Transport
	tracer    trace.Tracer
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*Job
	lanes   map[string]*lane
	ctx     context.Context
	closed  bool
	wg      sync.WaitGroup
}

func New(log *slog.Logger, transport Transport) *Queue {
	return &Queue{
		log:       log,
		transport: transport,
		tracer:    otel.Tracer("jobqueue"),
		now:       func() time.Time { return time.Now().UTC() },
		pending:   make(map[string]*Job),
		lanes:     make(map[string]*lane),
	}
}

// Start begins consuming the transport and running registered processors.
// Processing stops when ctx is done; a job that is already Active runs to
// completion.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.ctx != nil {
		q.mu.Unlock()
		return
	}
	q.ctx = ctx
	for _, l := range q.lanes {
		if l.handler != nil {
			q.startLaneLocked(l)
		}
	}
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.transport.Subscribe(ctx, q.accept); err != nil {
			q.log.Error("job transport stopped", "err", err)
		}
	}()
}

// Register binds the processor for jobType. Only one processor per type is
// allowed.
func (q *Queue) Register(jobType string, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	l := q.laneLocked(jobType)
	if l.handler != nil {
		return ErrProcessorRegistered
	}
	l.handler = h
	if q.ctx != nil {
		q.startLaneLocked(l)
	}
	q.log.Info("job processor registered", "job_type", jobType)
	return nil
}

// Enqueue creates a job and hands it to the transport. The returned job may
// be processed at any later time.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload json.RawMessage) (*Job, error) {
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, &EnqueueError{Type: jobType, Err: ErrInvalidPayload}
	}

	job := newJob(uuid.NewString(), jobType, payload, q.now())
	job.spanCtx = trace.SpanContextFromContext(ctx)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, &EnqueueError{Type: jobType, Err: ErrQueueClosed}
	}
	q.pending[job.ID] = job
	q.mu.Unlock()

	if err := q.transport.Publish(ctx, job.envelope()); err != nil {
		q.mu.Lock()
		delete(q.pending, job.ID)
		q.mu.Unlock()
		return nil, &EnqueueError{Type: jobType, Err: err}
	}
	q.log.Debug("job created", "job_id", job.ID, "job_type", jobType)
	return job, nil
}

// Backlog returns the number of delivered jobs of jobType waiting for their
// processor.
func (q *Queue) Backlog(jobType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[jobType]; ok {
		return len(l.backlog)
	}
	return 0
}

// Close stops intake. Jobs already delivered keep running until the Start
// context is done.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	return q.transport.Close()
}

// Wait blocks until the transport consumer and every processor returned.
func (q *Queue) Wait() { q.wg.Wait() }

func (q *Queue) laneLocked(jobType string) *lane {
	l, ok := q.lanes[jobType]
	if !ok {
		l = &lane{jobType: jobType, notify: make(chan struct{}, 1)}
		q.lanes[jobType] = l
	}
	return l
}

func (q *Queue) startLaneLocked(l *lane) {
	if l.running {
		return
	}
	l.running = true
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.work(q.ctx, l)
	}()
}

// accept routes a delivered envelope to its type lane. ctx carries the trace
// context the transport delivered the envelope with.
func (q *Queue) accept(ctx context.Context, env Envelope) {
	q.mu.Lock()
	job, ok := q.pending[env.ID]
	if ok {
		delete(q.pending, env.ID)
	} else {
		job = jobFromEnvelope(env)
	}
	if !job.spanCtx.IsValid() {
		job.spanCtx = trace.SpanContextFromContext(ctx)
	}
	l := q.laneLocked(env.Type)
	l.backlog = append(l.backlog, job)
	q.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) next(l *lane) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(l.backlog) == 0 {
		return nil
	}
	job := l.backlog[0]
	l.backlog[0] = nil
	l.backlog = l.backlog[1:]
	return job
}

func (q *Queue) work(ctx context.Context, l *lane) {
	for {
		for job := q.next(l); job != nil; job = q.next(l) {
			q.run(ctx, l, job)
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		}
	}
}

func (q *Queue) run(ctx context.Context, l *lane, job *Job) {
	if !job.activate() {
		return
	}
	parent := context.WithoutCancel(ctx)
	if job.spanCtx.IsValid() {
		parent = trace.ContextWithRemoteSpanContext(parent, job.spanCtx)
	}
	runCtx, span := q.tracer.Start(parent, "ProcessJob",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.type", job.Type),
		))
	defer span.End()

	err := q.invoke(runCtx, l.handler, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		q.log.Warn("job failed", "job_id", job.ID, "job_type", job.Type, "err", err)
	} else {
		q.log.Debug("job completed", "job_id", job.ID, "job_type", job.Type)
	}
	job.finish(err)
}

func (q *Queue) invoke(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return h(ctx, job)
}
