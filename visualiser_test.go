package caseflow_test

import (
	"strings"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow"
)

func TestMermaidDiagram(t *testing.T) {
	var sb strings.Builder
	err := caseflow.MermaidDiagram(caseflow.ClaimWorkflow(), &sb, caseflow.UnknownDirection, "")
	jtest.RequireNil(t, err)

	out := sb.String()
	require.Contains(t, out, "stateDiagram-v2")
	require.Contains(t, out, "direction LR")
	require.Contains(t, out, "[*]-->ValidateRequest")
	require.Contains(t, out, "ValidateRequest-->GatherClaimInfo")
	require.Contains(t, out, "ValidateRequest-->CancelRequest")
	require.Contains(t, out, "IdentifyAndDecide-->HoldRequest")
	require.Contains(t, out, "HoldRequest-->ApplyTempSuppression")
	require.Contains(t, out, "CancelRequest-->[*]")
	require.Contains(t, out, "FulfillAndDetect-->[*]")
	require.NotContains(t, out, "classDef")
}

func TestMermaidDiagramHighlightsCurrentNode(t *testing.T) {
	var sb strings.Builder
	err := caseflow.MermaidDiagram(caseflow.ClaimWorkflow(), &sb, caseflow.TopToBottomDirection, caseflow.NodeHoldRequest)
	jtest.RequireNil(t, err)

	out := sb.String()
	require.Contains(t, out, "direction TB")
	require.Contains(t, out, "class HoldRequest current")
}
