package caseflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"
	"github.com/robfig/cron/v3"
	"k8s.io/utils/clock"
)

// Engine is the only surface external callers use to drive workflow
// instances. It is constructed with an injected store and graph and holds no
// process wide state beyond its per-instance locks.
type Engine struct {
	graph *Graph
	store RecordStore
	sink  EventSink
	clock clock.Clock

	mu    sync.Mutex
	locks map[string]*instanceMutex
}

func New(g *Graph, store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		graph: g,
		store: store,
		clock: clock.RealClock{},
		locks: make(map[string]*instanceMutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

type Option func(e *Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithEventSink fans committed audit events out to an external stream.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// instanceMutex is the exclusive critical section for one instance, with a
// holder count so its map entry can be dropped safely.
type instanceMutex struct {
	mu   sync.Mutex
	refs int
}

// acquire locks the instance's critical section. A run is a read-modify-write
// cycle that is not safe under interleaving, so at most one run may execute
// per instance at a time.
func (e *Engine) acquire(instanceID string) *instanceMutex {
	e.mu.Lock()
	l, ok := e.locks[instanceID]
	if !ok {
		l = new(instanceMutex)
		e.locks[instanceID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return l
}

// release unlocks the critical section. The map entry is removed once the
// last holder of a terminal instance lets go, keeping the lock map bounded
// by the number of live instances.
func (e *Engine) release(instanceID string, l *instanceMutex, terminal bool) {
	l.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	l.refs--
	if l.refs == 0 && terminal {
		delete(e.locks, instanceID)
	}
}

type startOpts struct {
	bag map[string]any
}

type StartOption func(o *startOpts)

func WithInitialBag(bag map[string]any) StartOption {
	return func(o *startOpts) {
		o.bag = bag
	}
}

// Start allocates a fresh instance, appends its created event and performs
// one run. The returned state is already persisted.
func (e *Engine) Start(ctx context.Context, customerID, startedBy string, opts ...StartOption) (string, *ProcessState, error) {
	if customerID == "" || startedBy == "" {
		return "", nil, errors.Wrap(ErrInvalidInput, "customer ID and starting actor are required")
	}

	var o startOpts
	for _, opt := range opts {
		opt(&o)
	}

	bag := make(map[string]any)
	for k, v := range o.bag {
		bag[k] = v
	}

	instanceID := uuid.New().String()
	s := &ProcessState{
		InstanceID:   instanceID,
		WorkflowName: e.graph.name,
		CustomerID:   customerID,
		StartedBy:    startedBy,
		LastActor:    startedBy,
		Status:       StatusNotStarted,
		Bag:          bag,
		Decisions:    make(map[string]string),
	}

	created := &AuditEvent{
		Timestamp:  e.clock.Now(),
		InstanceID: instanceID,
		Kind:       EventCreated,
		Status:     s.Status,
		Actor:      startedBy,
		Payload: map[string]any{
			"customer_id": customerID,
		},
	}

	l := e.acquire(instanceID)
	defer func() {
		e.release(instanceID, l, s.Status.Terminal())
	}()

	outcome := e.run(s, startedBy)

	events := []*AuditEvent{created, outcome}
	err := e.store.SaveRun(ctx, s, events)
	if err != nil {
		return "", nil, err
	}

	e.emit(ctx, events)

	return instanceID, s, nil
}

type resumeOpts struct {
	userInput     *string
	controlAction *string
	bagUpdates    map[string]any
}

type ResumeOption func(o *resumeOpts)

func WithUserInput(input string) ResumeOption {
	return func(o *resumeOpts) {
		o.userInput = &input
	}
}

func WithControlAction(action string) ResumeOption {
	return func(o *resumeOpts) {
		o.controlAction = &action
	}
}

func WithBagUpdates(updates map[string]any) ResumeOption {
	return func(o *resumeOpts) {
		o.bagUpdates = updates
	}
}

// Resume applies the supplied inputs to an existing instance and performs
// one run. It fails with ErrInstanceNotFound for unknown instances and with
// ErrInvalidInput before any state mutation when the inputs are malformed.
func (e *Engine) Resume(ctx context.Context, instanceID, actor string, opts ...ResumeOption) (*ProcessState, error) {
	if actor == "" {
		return nil, errors.Wrap(ErrInvalidInput, "resuming actor is required")
	}

	var o resumeOpts
	for _, opt := range opts {
		opt(&o)
	}

	// The mailbox is a single slot: at most one of user input and control
	// action may be active per run.
	if o.userInput != nil && o.controlAction != nil {
		return nil, errors.Wrap(ErrInvalidInput, "supply either user input or a control action, not both")
	}

	l := e.acquire(instanceID)

	// Drop the lock entry when the instance is finished or was never loaded.
	var s *ProcessState
	defer func() {
		e.release(instanceID, l, s == nil || s.Status.Terminal())
	}()

	s, err := e.store.GetState(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	s.LastActor = actor
	s.Pause = false
	s.Prompt = ""
	if s.Status == StatusPaused || s.Status == StatusHold {
		// Provisionally back in progress; a step may immediately re-suspend.
		s.Status = StatusInProgress
	}
	s.LastResumeTime = e.clock.Now()

	if o.userInput != nil {
		s.PendingInput = *o.userInput
	}

	if o.controlAction != nil {
		s.ControlAction = normalize(*o.controlAction)
	}

	if len(o.bagUpdates) > 0 {
		if s.Bag == nil {
			s.Bag = make(map[string]any)
		}
		for k, v := range o.bagUpdates {
			s.Bag[k] = v
		}
	}

	command := &AuditEvent{
		Timestamp:  e.clock.Now(),
		InstanceID: instanceID,
		Kind:       EventResumeCommand,
		Node:       s.LastNode,
		Status:     s.Status,
		Actor:      actor,
		Payload: map[string]any{
			"user_input":     deref(o.userInput),
			"control_action": deref(o.controlAction),
			"bag_updates":    o.bagUpdates,
		},
	}

	outcome := e.run(s, actor)

	events := []*AuditEvent{command, outcome}
	err = e.store.SaveRun(ctx, s, events)
	if err != nil {
		return nil, err
	}

	e.emit(ctx, events)

	return s, nil
}

func (e *Engine) Get(ctx context.Context, instanceID string) (*ProcessState, error) {
	return e.store.GetState(ctx, instanceID)
}

// History returns the ordered audit trail of an instance.
func (e *Engine) History(ctx context.Context, instanceID string) ([]*AuditEvent, error) {
	_, err := e.store.GetState(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	return e.store.GetEvents(ctx, instanceID)
}

// List returns stored instances matching the filter, most recently updated
// first. An empty workflow name defaults to the engine's workflow.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]*ProcessState, error) {
	if f.WorkflowName == "" {
		f.WorkflowName = e.graph.name
	}

	return e.store.ListStates(ctx, f)
}

// ScheduleStart repeatedly starts instances for a customer on a cron
// schedule, skipping ticks while a previous instance is still open. It
// blocks until the context is cancelled.
func (e *Engine) ScheduleStart(ctx context.Context, customerID, startedBy, spec string) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Wrap(err, "invalid schedule spec", j.KV("spec", spec))
	}

	for {
		next := schedule.Next(e.clock.Now())
		err := waitUntil(ctx, e.clock, next)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		} else if err != nil {
			return err
		}

		states, err := e.store.ListStates(ctx, ListFilter{
			CustomerID:   customerID,
			WorkflowName: e.graph.name,
		})
		if err != nil {
			log.Error(ctx, errors.Wrap(err, "scheduled start - listing instances", j.MKV{
				"workflow_name": e.graph.name,
				"customer_id":   customerID,
			}))
			continue
		}

		var open bool
		for _, s := range states {
			if !s.Status.Terminal() {
				open = true
				break
			}
		}

		if open {
			// NoReturnErr: A previous instance is still awaiting input, skip
			// this tick and re-evaluate on the next one.
			continue
		}

		_, _, err = e.Start(ctx, customerID, startedBy)
		if err != nil {
			log.Error(ctx, errors.Wrap(err, "scheduled start - starting instance", j.MKV{
				"workflow_name": e.graph.name,
				"customer_id":   customerID,
				"started_by":    startedBy,
			}))
		}
	}
}

func waitUntil(ctx context.Context, c clock.Clock, until time.Time) error {
	t := c.NewTimer(until.Sub(c.Now()))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// emit delivers committed events to the configured sink. Failures are logged
// and never fail the run, the store remains the source of truth.
func (e *Engine) emit(ctx context.Context, events []*AuditEvent) {
	if e.sink == nil {
		return
	}

	for _, ev := range events {
		err := e.sink.Send(ctx, ev)
		if err != nil {
			log.Error(ctx, errors.Wrap(err, "failed to emit audit event", j.MKV{
				"instance_id": ev.InstanceID,
				"event":       ev.Kind,
			}))
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
