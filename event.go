package caseflow

import "time"

// EventKind classifies an audit event. Exactly one run outcome event is
// appended per engine run.
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventResumeCommand EventKind = "resume_command"
	EventProgressed    EventKind = "progressed"
	EventPaused        EventKind = "paused"
	EventHold          EventKind = "hold"
	EventCompleted     EventKind = "completed"
	EventAborted       EventKind = "aborted"
)

// AuditEvent is one immutable row of an instance's audit trail. Events are
// append only, ordered by insertion, and never mutated or deleted.
type AuditEvent struct {
	Timestamp  time.Time      `json:"ts"`
	InstanceID string         `json:"instance_id"`
	Kind       EventKind      `json:"event"`
	Node       string         `json:"node"`
	Status     Status         `json:"status"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"data"`
}
