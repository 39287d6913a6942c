package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/Reservation-System/pkg/tracing"
)

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper reports whether a message was already seen.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

const jobTypeHeader = "job_type"

// KafkaTransport carries envelopes over one topic. The message key is the
// job type so every type stays on a single partition and keeps its order.
type KafkaTransport struct {
	log    *slog.Logger
	writer Writer
	reader Reader
	topic  string
	idem   Deduper
}

func NewKafkaTransport(log *slog.Logger, brokers []string, topic, group string, idem Deduper) *KafkaTransport {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newKafkaTransport(log, w, r, topic, idem)
}

func newKafkaTransport(log *slog.Logger, w Writer, r Reader, topic string, idem Deduper) *KafkaTransport {
	return &KafkaTransport{log: log, writer: w, reader: r, topic: topic, idem: idem}
}

func (t *KafkaTransport) Publish(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: jobTypeHeader, Value: []byte(env.Type)},
	})
	return t.writer.WriteMessages(ctx, kafka.Message{
		Topic:   t.topic,
		Key:     []byte(env.Type),
		Value:   value,
		Headers: headers,
	})
}

// Subscribe commits each message once it is handed to deliver, before the job
// runs. Delivery is at most once: jobs still waiting in memory are lost if the
// process dies.
func (t *KafkaTransport) Subscribe(ctx context.Context, deliver func(context.Context, Envelope)) error {
	for {
		msg, err := t.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if t.idem != nil {
			key := t.idem.Key(msg.Topic, msg.Partition, msg.Offset)
			seen, err := t.idem.Seen(ctx, key)
			if err != nil {
				t.log.Error("idempotency check failed", "key", key, "err", err)
			} else if seen {
				t.log.Info("duplicate job message skipped", "key", key)
				t.commit(ctx, msg)
				continue
			}
		}

		var env Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil || env.ID == "" || env.Type == "" {
			t.log.Error("malformed job message dropped", "offset", msg.Offset, "err", err)
			t.commit(ctx, msg)
			continue
		}

		deliver(tracing.ExtractKafkaHeaders(ctx, msg.Headers), env)
		t.commit(ctx, msg)
	}
}

func (t *KafkaTransport) commit(ctx context.Context, msg kafka.Message) {
	if err := t.reader.CommitMessages(ctx, msg); err != nil {
		t.log.Error("commit failed", "offset", msg.Offset, "err", err)
	}
}

func (t *KafkaTransport) Close() error {
	return errors.Join(t.writer.Close(), t.reader.Close())
}
