// Package kafkasink publishes committed audit events to a kafka topic so
// that downstream consumers (dashboards, warehouses) can follow workflow
// activity without polling the store.
package kafkasink

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/segmentio/kafka-go"

	"github.com/caseflow/caseflow"
)

const maxWriteAttempts = 5

func New(brokers []string, topic string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
		writeTimeout: time.Second * 10,
		retryBackoff: time.Millisecond * 250,
	}
}

var _ caseflow.EventSink = (*Sink)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	writer       messageWriter
	writeTimeout time.Duration
	retryBackoff time.Duration
}

// Send publishes one audit event keyed by instance ID, which preserves per
// instance ordering within a partition. Transient broker errors are retried
// up to maxWriteAttempts; the backoff honours context cancellation.
func (s *Sink) Send(ctx context.Context, e *caseflow.AuditEvent) error {
	value, err := caseflow.Marshal(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(e.InstanceID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Kind)},
		},
	}

	for attempt := 1; ; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err := s.writer.WriteMessages(wctx, msg)
		cancel()
		if err == nil {
			return nil
		}

		retryable := errors.Is(err, kafka.LeaderNotAvailable) || errors.Is(err, context.DeadlineExceeded)
		if !retryable || attempt == maxWriteAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryBackoff):
		}
	}
}

func (s *Sink) Close() error {
	return s.writer.Close()
}
