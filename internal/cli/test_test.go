package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: grow
initial: {tags: [a]}
steps:
  - {op: append, path: tags, value: b}
expect:
  leaves:
    - {op: append, path: tags, value: [b]}
`

const failingScenario = `name: wrong
initial: {n: 1}
steps:
  - {op: set, path: n, value: 2}
assertions:
  - {type: final_value, path: n, value: 3}
`

func TestTestCommand_Pass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grow.yaml", passingScenario)

	out, err := executeCommand(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ grow")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Fail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grow.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: final_value")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grow.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := executeCommand(t, "test", dir, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Total     int `json:"total"`
			Failed    int `json:"failed"`
			Scenarios []struct {
				Name string `json:"name"`
				Pass bool   `json:"pass"`
			} `json:"scenarios"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "grow", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommand_FilterAndGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grow.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)
	golden := filepath.Join(t.TempDir(), "golden")

	_, err := executeCommand(t, "test", dir, "--filter", "grow*", "--golden", golden, "--update")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(golden, "grow.golden"))
	require.NoError(t, err)

	out, err := executeCommand(t, "test", dir, "--filter", "grow*", "--golden", golden)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeCommand(t, "test", t.TempDir(), "--update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--update requires --golden")
}

func TestTestCommand_Empty(t *testing.T) {
	out, err := executeCommand(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}
