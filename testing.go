package caseflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// RequirePosition asserts that an instance halted on the expected node with
// the expected status.
func RequirePosition(t *testing.T, s *ProcessState, node string, status Status) {
	if t == nil {
		panic("RequirePosition can only be used for testing")
	}

	t.Helper()

	require.Equal(t, node, s.LastNode)
	require.Equal(t, status, s.Status)
}
