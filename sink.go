package caseflow

import "context"

// EventSink receives audit events after they have been committed to the
// store. Delivery is best effort and never affects the outcome of a run.
type EventSink interface {
	Send(ctx context.Context, e *AuditEvent) error
	Close() error
}
