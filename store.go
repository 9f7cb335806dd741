package caseflow

import "context"

// ListFilter narrows a state listing. Zero valued fields are ignored;
// non-zero fields are matched by equality.
type ListFilter struct {
	CustomerID   string
	Status       Status
	StartedBy    string
	WorkflowName string
}

func (f ListFilter) Match(s *ProcessState) bool {
	if f.CustomerID != "" && s.CustomerID != f.CustomerID {
		return false
	}

	if f.Status != StatusUnknown && s.Status != f.Status {
		return false
	}

	if f.StartedBy != "" && s.StartedBy != f.StartedBy {
		return false
	}

	if f.WorkflowName != "" && s.WorkflowName != f.WorkflowName {
		return false
	}

	return true
}

// RecordStore persists process states and their audit events. The engine is
// storage agnostic; an in-memory implementation must satisfy the same
// contract as a durable one. Implementations stamp UpdatedAt on every state
// write.
type RecordStore interface {
	UpsertState(ctx context.Context, s *ProcessState) error
	GetState(ctx context.Context, instanceID string) (*ProcessState, error)
	ListStates(ctx context.Context, f ListFilter) ([]*ProcessState, error)
	AppendEvent(ctx context.Context, e *AuditEvent) error
	GetEvents(ctx context.Context, instanceID string) ([]*AuditEvent, error)

	// SaveRun persists the state and the audit events of a single engine run
	// as one atomic unit. Partial application is a contract violation.
	SaveRun(ctx context.Context, s *ProcessState, events []*AuditEvent) error
}
