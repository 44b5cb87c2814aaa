package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Foo(t *testing.T) {
	require.NoError(t, RunWithGolden(t, loadTestScenario(t, "foo")))
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	result, err := Run(loadTestScenario(t, "foo"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "foo", result))
}

func TestSnapshot_NullsForEmptyResult(t *testing.T) {
	snap := snapshot("empty", NewResult())
	require.NotNil(t, snap["change"])
	require.NotNil(t, snap["final"])
}
