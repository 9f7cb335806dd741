package caseflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow"
)

func TestSetDecisionIsWriteOnce(t *testing.T) {
	s := &caseflow.ProcessState{}

	require.True(t, s.SetDecision("validate", "yes"))
	require.False(t, s.SetDecision("validate", "no"))

	v, ok := s.Decision("validate")
	require.True(t, ok)
	require.Equal(t, "yes", v)
}

func TestMailboxIsSingleUse(t *testing.T) {
	s := &caseflow.ProcessState{PendingInput: "yes", ControlAction: "abort"}

	in, ok := s.ConsumeInput()
	require.True(t, ok)
	require.Equal(t, "yes", in)

	_, ok = s.ConsumeInput()
	require.False(t, ok)

	a, ok := s.ConsumeControl()
	require.True(t, ok)
	require.Equal(t, "abort", a)

	_, ok = s.ConsumeControl()
	require.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	s := &caseflow.ProcessState{
		InstanceID: "i1",
		Bag:        map[string]any{"k": "v"},
		Decisions:  map[string]string{"validate": "yes"},
		StepsHistory: []caseflow.StepEntry{
			{Node: "A", Status: caseflow.StatusPaused, Actor: "user_a"},
		},
	}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Bag["k"] = "other"
	c.Decisions["validate"] = "no"
	c.StepsHistory[0].Node = "B"

	require.Equal(t, "v", s.Bag["k"])
	require.Equal(t, "yes", s.Decisions["validate"])
	require.Equal(t, "A", s.StepsHistory[0].Node)
}

func TestStatusTerminal(t *testing.T) {
	for status, terminal := range map[caseflow.Status]bool{
		caseflow.StatusNotStarted: false,
		caseflow.StatusInProgress: false,
		caseflow.StatusPaused:     false,
		caseflow.StatusHold:       false,
		caseflow.StatusCompleted:  true,
		caseflow.StatusAborted:    true,
		caseflow.StatusFailed:     true,
	} {
		require.Equal(t, terminal, status.Terminal(), "status %v", status)
	}
}

func TestToProjection(t *testing.T) {
	start := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	s := &caseflow.ProcessState{
		InstanceID: "i1",
		Status:     caseflow.StatusPaused,
		LastNode:   caseflow.NodeValidateRequest,
		Prompt:     "Validate request? (yes/no)",
		StartTime:  start,
		StepsHistory: []caseflow.StepEntry{
			{Timestamp: start, Node: caseflow.NodeValidateRequest, Status: caseflow.StatusPaused, Actor: "user_a"},
		},
		// Engine internals that must not leak into the projection.
		PendingInput:  "yes",
		ControlAction: "abort",
		Decisions:     map[string]string{"validate": "yes"},
	}

	p := s.ToProjection()
	require.Equal(t, "i1", p.InstanceID)
	require.Equal(t, caseflow.StatusPaused, p.Status)
	require.Equal(t, caseflow.NodeValidateRequest, p.LastNode)
	require.Equal(t, s.Prompt, p.Prompt)
	require.Equal(t, s.StepsHistory, p.StepsHistory)
	require.Equal(t, start, p.StartTime)
	require.True(t, p.EndTime.IsZero())
}
