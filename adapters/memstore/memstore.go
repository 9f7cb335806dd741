// Package memstore provides the in-memory reference implementation of the
// caseflow record store. It satisfies the same contract as a durable store
// and is intended for tests and single process deployments.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/luno/jettison/errors"
	"k8s.io/utils/clock"

	"github.com/caseflow/caseflow"
)

func New(opts ...Option) *Store {
	s := &Store{
		clock:  clock.RealClock{},
		states: make(map[string]*caseflow.ProcessState),
		events: make(map[string][]*caseflow.AuditEvent),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(s *Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

var _ caseflow.RecordStore = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	states map[string]*caseflow.ProcessState
	events map[string][]*caseflow.AuditEvent
}

func (s *Store) UpsertState(ctx context.Context, state *caseflow.ProcessState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertState(state)
	return nil
}

func (s *Store) upsertState(state *caseflow.ProcessState) {
	c := state.Clone()
	c.UpdatedAt = s.clock.Now()
	s.states[c.InstanceID] = c
}

func (s *Store) GetState(ctx context.Context, instanceID string) (*caseflow.ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[instanceID]
	if !ok {
		return nil, errors.Wrap(caseflow.ErrInstanceNotFound, "")
	}

	return state.Clone(), nil
}

func (s *Store) ListStates(ctx context.Context, f caseflow.ListFilter) ([]*caseflow.ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*caseflow.ProcessState
	for _, state := range s.states {
		if !f.Match(state) {
			continue
		}

		out = append(out, state.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *caseflow.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendEvent(e)
	return nil
}

func (s *Store) appendEvent(e *caseflow.AuditEvent) {
	c := *e
	c.Payload = maps.Clone(e.Payload)
	s.events[e.InstanceID] = append(s.events[e.InstanceID], &c)
}

func (s *Store) GetEvents(ctx context.Context, instanceID string) ([]*caseflow.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[instanceID]
	out := make([]*caseflow.AuditEvent, 0, len(events))
	for _, e := range events {
		c := *e
		c.Payload = maps.Clone(e.Payload)
		out = append(out, &c)
	}

	return out, nil
}

// SaveRun applies the state write and the event appends under one lock
// acquisition so that readers never observe one without the other.
func (s *Store) SaveRun(ctx context.Context, state *caseflow.ProcessState, events []*caseflow.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertState(state)
	for _, e := range events {
		s.appendEvent(e)
	}

	return nil
}
