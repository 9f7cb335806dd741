package caseflow

import "time"

// run replays the whole graph from its entry step over the given state until
// it suspends or reaches a terminal step, then applies the per-run timestamp
// and history rules and returns the run's audit event.
//
// Replay relies on decisions being write once: a step whose governing
// decision is already present performs no side effect beyond updating the
// last node and falls through to routing. There is no saved continuation
// pointer; the recorded decisions are the program counter.
func (e *Engine) run(s *ProcessState, actor string) *AuditEvent {
	node := e.graph.entry
	for {
		step := e.graph.steps[node]
		step(s)

		route, ok := e.graph.routes[node]
		if !ok {
			// Terminal step.
			break
		}

		next := route(s)
		if next.Suspended() {
			break
		}

		node = next.Node()
	}

	s.LastActor = actor

	now := e.clock.Now()
	recordTransition(s, actor, now)

	return &AuditEvent{
		Timestamp:  now,
		InstanceID: s.InstanceID,
		Kind:       classify(s),
		Node:       s.LastNode,
		Status:     s.Status,
		Actor:      actor,
		Payload: map[string]any{
			"prompt": s.Prompt,
			"result": s.Result,
		},
	}
}

// recordTransition applies the history append rule and the timestamp rules
// once per run, after the graph has halted.
func recordTransition(s *ProcessState, actor string, now time.Time) {
	var lastRecorded string
	if n := len(s.StepsHistory); n > 0 {
		lastRecorded = s.StepsHistory[n-1].Node
	}

	// Idempotent replays must not duplicate history rows: append only when
	// the halting node differs from the last recorded one.
	if s.LastNode != "" && s.LastNode != lastRecorded {
		s.StepsHistory = append(s.StepsHistory, StepEntry{
			Timestamp: now,
			Node:      s.LastNode,
			Status:    s.Status,
			Actor:     actor,
		})
	}

	if s.StartTime.IsZero() && s.LastNode != "" {
		s.StartTime = now
	}

	if s.Pause && (s.Status == StatusPaused || s.Status == StatusHold) {
		s.LastPauseTime = now
	}

	// EndTime is set exactly once and never overwritten.
	if s.EndTime.IsZero() && s.Status.Terminal() {
		s.EndTime = now
	}
}

// classify picks the run outcome event, evaluated in priority order.
func classify(s *ProcessState) EventKind {
	switch {
	case s.Status == StatusCompleted:
		return EventCompleted
	case s.Status == StatusAborted:
		return EventAborted
	case s.Status == StatusHold:
		return EventHold
	case s.Pause:
		return EventPaused
	default:
		return EventProgressed
	}
}
