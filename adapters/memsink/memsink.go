// Package memsink provides an in-memory audit event sink for tests and
// single process deployments.
package memsink

import (
	"context"
	"maps"
	"sync"

	"github.com/luno/jettison/errors"

	"github.com/caseflow/caseflow"
)

var ErrSinkClosed = errors.New("sink closed")

func New() *Sink {
	return &Sink{}
}

var _ caseflow.EventSink = (*Sink)(nil)

type Sink struct {
	mu     sync.Mutex
	closed bool
	events []*caseflow.AuditEvent
}

func (s *Sink) Send(ctx context.Context, e *caseflow.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.Wrap(ErrSinkClosed, "")
	}

	c := *e
	c.Payload = maps.Clone(e.Payload)
	s.events = append(s.events, &c)

	return nil
}

// Events returns a snapshot of everything sent so far.
func (s *Sink) Events() []*caseflow.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*caseflow.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
