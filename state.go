package caseflow

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a workflow instance.
type Status string

const (
	StatusUnknown    Status = ""
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusHold       Status = "hold"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further run can change the instance's outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPaused, StatusHold, StatusCompleted, StatusAborted, StatusFailed:
		return true
	default:
		return false
	}
}

// StepEntry is one row of an instance's step history.
type StepEntry struct {
	Timestamp time.Time `json:"ts"`
	Node      string    `json:"node"`
	Status    Status    `json:"status"`
	Actor     string    `json:"actor"`
}

// ProcessState is the full record of one workflow instance. It is exclusively
// owned by the engine during a run and by the store between runs.
type ProcessState struct {
	InstanceID   string `json:"instance_id"`
	WorkflowName string `json:"workflow_name"`
	CustomerID   string `json:"customer_id"`
	StartedBy    string `json:"started_by"`
	LastActor    string `json:"last_actor"`

	Status   Status `json:"status"`
	LastNode string `json:"last_node"`

	StartTime      time.Time `json:"start_time"`
	LastPauseTime  time.Time `json:"last_pause_time"`
	LastResumeTime time.Time `json:"last_resume_time"`
	EndTime        time.Time `json:"end_time"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Prompt is the human readable request for input. It is set exactly when
	// Pause is true and cleared on resume.
	Prompt string `json:"prompt"`
	Pause  bool   `json:"pause"`

	// PendingInput and ControlAction form a single slot mailbox for the next
	// piece of external input. The step that reads a slot clears it.
	PendingInput  string `json:"pending_input"`
	ControlAction string `json:"control_action"`

	Result    string            `json:"result"`
	Bag       map[string]any    `json:"bag"`
	Decisions map[string]string `json:"decisions"`

	StepsHistory []StepEntry `json:"steps_history"`
}

// Decision returns the recorded answer for the given decision key.
func (s *ProcessState) Decision(key string) (string, bool) {
	v, ok := s.Decisions[key]
	return v, ok
}

// SetDecision records a decision. Decisions are write once for the life of
// the instance; an attempt to overwrite an existing key is ignored and
// reported as false.
func (s *ProcessState) SetDecision(key, value string) bool {
	if s.Decisions == nil {
		s.Decisions = make(map[string]string)
	}

	if _, ok := s.Decisions[key]; ok {
		return false
	}

	s.Decisions[key] = value
	return true
}

// ConsumeInput takes the pending external input out of the mailbox.
func (s *ProcessState) ConsumeInput() (string, bool) {
	if s.PendingInput == "" {
		return "", false
	}

	in := s.PendingInput
	s.PendingInput = ""
	return in, true
}

// ConsumeControl takes the pending control action out of the mailbox.
func (s *ProcessState) ConsumeControl() (string, bool) {
	if s.ControlAction == "" {
		return "", false
	}

	a := s.ControlAction
	s.ControlAction = ""
	return a, true
}

// AwaitInput suspends the run until a caller supplies new external input.
func (s *ProcessState) AwaitInput(prompt string) {
	s.Pause = true
	s.Status = StatusPaused
	s.Prompt = prompt
}

// AwaitControl places the instance on hold until a caller supplies a control
// action.
func (s *ProcessState) AwaitControl(prompt string) {
	s.Pause = true
	s.Status = StatusHold
	s.Prompt = prompt
}

// Clone returns a deep copy so that stored state cannot be mutated through
// previously returned references.
func (s *ProcessState) Clone() *ProcessState {
	c := *s
	c.Bag = maps.Clone(s.Bag)
	c.Decisions = maps.Clone(s.Decisions)
	c.StepsHistory = slices.Clone(s.StepsHistory)
	return &c
}

// Projection is the read model consumed by presentation layers. It carries
// enough to render the current position and path without engine internals.
type Projection struct {
	InstanceID   string      `json:"instance_id"`
	Status       Status      `json:"status"`
	LastNode     string      `json:"last_node"`
	Prompt       string      `json:"prompt"`
	StepsHistory []StepEntry `json:"steps_history"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"`
}

func (s *ProcessState) ToProjection() Projection {
	return Projection{
		InstanceID:   s.InstanceID,
		Status:       s.Status,
		LastNode:     s.LastNode,
		Prompt:       s.Prompt,
		StepsHistory: slices.Clone(s.StepsHistory),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
	}
}

// normalize case folds and trims free text input before it is compared
// against a step's vocabulary.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
