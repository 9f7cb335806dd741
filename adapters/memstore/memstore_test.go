package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
	clock_testing "k8s.io/utils/clock/testing"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/adapters/memstore"
)

func testState(instanceID string) *caseflow.ProcessState {
	t0 := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	return &caseflow.ProcessState{
		InstanceID:   instanceID,
		WorkflowName: caseflow.ClaimWorkflowName,
		CustomerID:   "C1",
		StartedBy:    "user_a",
		LastActor:    "user_b",
		Status:       caseflow.StatusPaused,
		LastNode:     caseflow.NodeGatherClaimInfo,
		StartTime:    t0,
		Prompt:       "Provide claim details (free text).",
		Pause:        true,
		Bag:          map[string]any{"k": "v"},
		Decisions:    map[string]string{caseflow.DecisionValidate: "yes"},
		StepsHistory: []caseflow.StepEntry{
			{Timestamp: t0, Node: caseflow.NodeValidateRequest, Status: caseflow.StatusPaused, Actor: "user_a"},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	want := testState("i1")
	jtest.RequireNil(t, store.UpsertState(ctx, want))

	got, err := store.GetState(ctx, "i1")
	jtest.RequireNil(t, err)

	// Field for field equal except the server stamped UpdatedAt.
	require.False(t, got.UpdatedAt.IsZero())
	got.UpdatedAt = want.UpdatedAt
	require.Equal(t, want, got)
}

func TestGetStateNotFound(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	_, err := store.GetState(ctx, "nope")
	jtest.Require(t, caseflow.ErrInstanceNotFound, err)
}

func TestStoredStateIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	s := testState("i1")
	jtest.RequireNil(t, store.UpsertState(ctx, s))

	// Mutating the written state or a read result must not leak into the
	// store.
	s.Bag["k"] = "mutated"

	got, err := store.GetState(ctx, "i1")
	jtest.RequireNil(t, err)
	require.Equal(t, "v", got.Bag["k"])

	got.Decisions[caseflow.DecisionValidate] = "no"

	again, err := store.GetState(ctx, "i1")
	jtest.RequireNil(t, err)
	require.Equal(t, "yes", again.Decisions[caseflow.DecisionValidate])
}

func TestListStatesFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	clock := clock_testing.NewFakeClock(time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC))
	store := memstore.New(memstore.WithClock(clock))

	a := testState("a")
	jtest.RequireNil(t, store.UpsertState(ctx, a))

	clock.Step(time.Second)
	b := testState("b")
	b.CustomerID = "C2"
	jtest.RequireNil(t, store.UpsertState(ctx, b))

	clock.Step(time.Second)
	c := testState("c")
	c.Status = caseflow.StatusAborted
	jtest.RequireNil(t, store.UpsertState(ctx, c))

	all, err := store.ListStates(ctx, caseflow.ListFilter{})
	jtest.RequireNil(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].InstanceID)
	require.Equal(t, "b", all[1].InstanceID)
	require.Equal(t, "a", all[2].InstanceID)

	paused, err := store.ListStates(ctx, caseflow.ListFilter{Status: caseflow.StatusPaused})
	jtest.RequireNil(t, err)
	require.Len(t, paused, 2)

	c1, err := store.ListStates(ctx, caseflow.ListFilter{CustomerID: "C1"})
	jtest.RequireNil(t, err)
	require.Len(t, c1, 2)

	none, err := store.ListStates(ctx, caseflow.ListFilter{WorkflowName: "Other"})
	jtest.RequireNil(t, err)
	require.Empty(t, none)
}

func TestEventsAppendOnlyAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	for i, kind := range []caseflow.EventKind{caseflow.EventCreated, caseflow.EventPaused, caseflow.EventResumeCommand} {
		e := &caseflow.AuditEvent{
			Timestamp:  time.Date(2024, time.March, 4, 12, 0, i, 0, time.UTC),
			InstanceID: "i1",
			Kind:       kind,
			Status:     caseflow.StatusPaused,
			Actor:      "user_a",
			Payload:    map[string]any{"n": i},
		}
		jtest.RequireNil(t, store.AppendEvent(ctx, e))
	}

	events, err := store.GetEvents(ctx, "i1")
	jtest.RequireNil(t, err)
	require.Len(t, events, 3)
	require.Equal(t, caseflow.EventCreated, events[0].Kind)
	require.Equal(t, caseflow.EventPaused, events[1].Kind)
	require.Equal(t, caseflow.EventResumeCommand, events[2].Kind)

	other, err := store.GetEvents(ctx, "i2")
	jtest.RequireNil(t, err)
	require.Empty(t, other)
}

func TestSaveRunPersistsBoth(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	s := testState("i1")
	events := []*caseflow.AuditEvent{
		{InstanceID: "i1", Kind: caseflow.EventCreated, Status: caseflow.StatusNotStarted, Actor: "user_a"},
		{InstanceID: "i1", Kind: caseflow.EventPaused, Status: caseflow.StatusPaused, Actor: "user_a"},
	}

	jtest.RequireNil(t, store.SaveRun(ctx, s, events))

	got, err := store.GetState(ctx, "i1")
	jtest.RequireNil(t, err)
	require.Equal(t, s.InstanceID, got.InstanceID)

	stored, err := store.GetEvents(ctx, "i1")
	jtest.RequireNil(t, err)
	require.Len(t, stored, 2)
}
