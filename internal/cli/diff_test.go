package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

func TestDiff(t *testing.T) {
	before := ir.IRObject{"bar": ir.IRObject{"baz": ir.IRInt(42)}, "qux": ir.IRString("hello")}
	after := ir.IRObject{"bar": ir.IRObject{"baz": ir.IRInt(43)}, "qux": ir.IRString("hello world")}

	c, err := Diff(before, after)
	require.NoError(t, err)
	assert.Equal(t, change.NewBatch(nil,
		change.NewReplace(change.MustParsePath("bar.baz"), ir.IRInt(43)),
		change.NewAppend(change.MustParsePath("qux"), ir.IRString(" world")),
	), c)

	c, err = Diff(before, ir.Clone(before))
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDiffCommand_Text(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.json", `{"bar":{"baz":42},"qux":"hello"}`)
	after := writeFile(t, dir, "after.yaml", "bar:\n  baz: 43\nqux: hello world\n")

	out, err := executeCommand(t, "diff", before, after)
	require.NoError(t, err)
	assert.Equal(t, "replace bar.baz 43\nappend  qux \" world\"\n", out)
}

func TestDiffCommand_RootReplace(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.json", `[1,2]`)
	after := writeFile(t, dir, "after.json", `{"a":1}`)

	out, err := executeCommand(t, "diff", before, after)
	require.NoError(t, err)
	assert.Equal(t, "replace (root) {\"a\":1}\n", out)
}

func TestDiffCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.json", `{"tags":["a"]}`)
	after := writeFile(t, dir, "after.json", `{"tags":["a","b"]}`)

	out, err := executeCommand(t, "diff", before, after, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ChangeOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Changed)
	assert.Equal(t, 1, resp.Data.Leaves)
	assert.Equal(t, map[string]any{
		"op":    "append",
		"path":  []any{"tags"},
		"value": []any{"b"},
	}, resp.Data.Change)
}

func TestDiffCommand_NoChanges(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"n":1}`)

	out, err := executeCommand(t, "diff", a, a, "--exit-code")
	require.NoError(t, err)
	assert.Equal(t, "No changes.\n", out)
}

func TestDiffCommand_ExitCode(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"n":1}`)
	b := writeFile(t, dir, "b.json", `{"n":2}`)

	_, err := executeCommand(t, "diff", a, b, "--exit-code")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestDiffCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{}`)

	_, err := executeCommand(t, "diff", a, dir+"/missing.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load after document")
}
