package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newTestQueue(t *testing.T) (*Queue, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	q := New(slog.New(slog.NewTextHandler(io.Discard, nil)), NewMemoryTransport())
	t.Cleanup(func() {
		cancel()
		q.Wait()
	})
	return q, ctx
}

func waitAll(t *testing.T, jobs []*Job) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, j := range jobs {
		select {
		case <-j.Done():
		case <-ctx.Done():
			t.Fatalf("job %s did not finish", j.ID)
		}
	}
}

func TestQueueProcessesOneTypeSeriallyInOrder(t *testing.T) {
	q, ctx := newTestQueue(t)
	q.Start(ctx)

	var (
		mu      sync.Mutex
		order   []int
		active  atomic.Int32
		overlap atomic.Bool
	)
	require.NoError(t, q.Register("count", func(_ context.Context, job *Job) error {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)

		var n int
		if err := json.Unmarshal(job.Payload(), &n); err != nil {
			return err
		}
		time.Sleep(100 * time.Microsecond)
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		return nil
	}))

	var jobs []*Job
	for i := 0; i < 100; i++ {
		payload, _ := json.Marshal(i)
		job, err := q.Enqueue(ctx, "count", payload)
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	waitAll(t, jobs)

	assert.False(t, overlap.Load(), "handlers overlapped")
	require.Len(t, order, 100)
	for i, n := range order {
		assert.Equal(t, i, n)
	}
	for _, j := range jobs {
		assert.Equal(t, StateComplete, j.State())
	}
}

func TestQueueRejectsSecondProcessor(t *testing.T) {
	q, _ := newTestQueue(t)
	noop := func(context.Context, *Job) error { return nil }

	require.NoError(t, q.Register("a", noop))
	assert.ErrorIs(t, q.Register("a", noop), ErrProcessorRegistered)
	assert.NoError(t, q.Register("b", noop))
}

func TestQueueHoldsJobsUntilProcessorRegisters(t *testing.T) {
	q, ctx := newTestQueue(t)
	q.Start(ctx)

	var jobs []*Job
	for i := 0; i < 3; i++ {
		job, err := q.Enqueue(ctx, "later", nil)
		require.NoError(t, err)
		assert.Equal(t, StateCreated, job.State())
		jobs = append(jobs, job)
	}
	require.Eventually(t, func() bool { return q.Backlog("later") == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Register("later", func(context.Context, *Job) error { return nil }))
	waitAll(t, jobs)
	assert.Zero(t, q.Backlog("later"))
}

func TestQueueRegisterBeforeStart(t *testing.T) {
	q, ctx := newTestQueue(t)
	require.NoError(t, q.Register("early", func(context.Context, *Job) error { return nil }))
	q.Start(ctx)

	job, err := q.Enqueue(ctx, "early", nil)
	require.NoError(t, err)
	require.NoError(t, job.Wait(ctx))
	assert.Equal(t, StateComplete, job.State())
}

func TestQueueProcessingContinuesEnqueueTrace(t *testing.T) {
	q, ctx := newTestQueue(t)
	traceIDs := make(chan trace.TraceID, 1)
	require.NoError(t, q.Register("traced", func(ctx context.Context, _ *Job) error {
		traceIDs <- trace.SpanContextFromContext(ctx).TraceID()
		return nil
	}))
	q.Start(ctx)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa},
		TraceFlags: trace.FlagsSampled,
	})
	job, err := q.Enqueue(trace.ContextWithSpanContext(ctx, sc), "traced", nil)
	require.NoError(t, err)
	require.NoError(t, job.Wait(ctx))
	assert.Equal(t, sc.TraceID(), <-traceIDs)
}

func TestQueueFailedJobIsTerminal(t *testing.T) {
	q, ctx := newTestQueue(t)
	q.Start(ctx)

	boom := errors.New("boom")
	var calls atomic.Int32
	require.NoError(t, q.Register("fail", func(context.Context, *Job) error {
		calls.Add(1)
		return boom
	}))

	job, err := q.Enqueue(ctx, "fail", nil)
	require.NoError(t, err)

	events := make(chan Event, 4)
	job.Observe(func(ev Event) { events <- ev })

	assert.ErrorIs(t, job.Wait(ctx), boom)
	assert.Equal(t, StateFailed, job.State())
	assert.ErrorIs(t, job.Err(), boom)
	assert.Equal(t, int32(1), calls.Load())

	ev := <-events
	assert.Equal(t, EventFailed, ev.Kind)
	assert.Equal(t, job.ID, ev.JobID)
	assert.ErrorIs(t, ev.Err, boom)
}

func TestQueueProgressEvents(t *testing.T) {
	q, ctx := newTestQueue(t)

	release := make(chan struct{})
	require.NoError(t, q.Register("progress", func(_ context.Context, job *Job) error {
		<-release
		job.Progress(0)
		job.Progress(50)
		job.Progress(150)
		return nil
	}))

	job, err := q.Enqueue(ctx, "progress", nil)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen []Event
	)
	job.Observe(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})
	q.Start(ctx)
	close(release)
	require.NoError(t, job.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4)
	assert.Equal(t, []int{0, 50, 100}, []int{seen[0].Progress, seen[1].Progress, seen[2].Progress})
	assert.Equal(t, EventProgress, seen[0].Kind)
	assert.Equal(t, EventComplete, seen[3].Kind)
}

func TestObserveAfterCompletionFiresImmediately(t *testing.T) {
	q, ctx := newTestQueue(t)
	q.Start(ctx)
	require.NoError(t, q.Register("quick", func(context.Context, *Job) error { return nil }))

	job, err := q.Enqueue(ctx, "quick", nil)
	require.NoError(t, err)
	require.NoError(t, job.Wait(ctx))

	var got Event
	job.Observe(func(ev Event) { got = ev })
	assert.Equal(t, EventComplete, got.Kind)
}

func TestQueueRecoversHandlerPanic(t *testing.T) {
	q, ctx := newTestQueue(t)
	q.Start(ctx)
	require.NoError(t, q.Register("panic", func(context.Context, *Job) error { panic("bad") }))

	job, err := q.Enqueue(ctx, "panic", nil)
	require.NoError(t, err)

	var pe *PanicError
	require.ErrorAs(t, job.Wait(ctx), &pe)
	assert.Equal(t, "bad", pe.Value)
}

func TestEnqueueAfterClose(t *testing.T) {
	q, ctx := newTestQueue(t)
	require.NoError(t, q.Close())

	job, err := q.Enqueue(ctx, "any", nil)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, ErrEnqueue)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

type failingTransport struct{ MemoryTransport }

func (*failingTransport) Publish(context.Context, Envelope) error {
	return errors.New("connection refused")
}

func TestEnqueueTransportFailure(t *testing.T) {
	q := New(slog.New(slog.NewTextHandler(io.Discard, nil)), &failingTransport{})

	_, err := q.Enqueue(context.Background(), "any", nil)
	var ee *EnqueueError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "any", ee.Type)
	assert.ErrorIs(t, err, ErrEnqueue)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, q.pending)
}

func TestEnqueueRejectsInvalidPayload(t *testing.T) {
	q, ctx := newTestQueue(t)
	_, err := q.Enqueue(ctx, "any", json.RawMessage(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestJobPayloadIsImmutable(t *testing.T) {
	q, ctx := newTestQueue(t)
	payload := json.RawMessage(`{"phoneNumber":"4153518780"}`)

	job, err := q.Enqueue(ctx, "copy", payload)
	require.NoError(t, err)

	payload[2] = 'X'
	got := job.Payload()
	got[3] = 'Y'
	assert.JSONEq(t, `{"phoneNumber":"4153518780"}`, string(job.Payload()))
}
