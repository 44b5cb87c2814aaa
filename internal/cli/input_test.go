package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

func TestLoadValue(t *testing.T) {
	dir := t.TempDir()
	want := ir.IRObject{
		"name":  ir.IRString("svc"),
		"ratio": ir.IRFloat(0.5),
		"tags":  ir.IRArray{ir.IRString("a")},
	}

	for name, content := range map[string]string{
		"doc.json": `{"name":"svc","ratio":0.5,"tags":["a"]}`,
		"doc.yaml": "name: svc\nratio: 0.5\ntags: [a]\n",
		"doc.YML":  "name: svc\nratio: 0.5\ntags:\n  - a\n",
	} {
		t.Run(name, func(t *testing.T) {
			v, err := LoadValue(writeFile(t, dir, name, content))
			require.NoError(t, err)
			assert.Equal(t, want, v)
		})
	}
}

func TestLoadValue_EmptyYAML(t *testing.T) {
	v, err := LoadValue(writeFile(t, t.TempDir(), "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, v)
}

func TestLoadValue_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadValue(dir + "/missing.json")
	assert.Error(t, err)

	_, err = LoadValue(writeFile(t, dir, "bad.json", `{"a":`))
	assert.Error(t, err)

	_, err = LoadValue(writeFile(t, dir, "bad.yaml", "a: [unclosed"))
	assert.Error(t, err)

	_, err = LoadValue(writeFile(t, dir, "keys.yaml", "1: one\n"))
	assert.Error(t, err)
}

func TestLoadChange(t *testing.T) {
	dir := t.TempDir()
	want := change.NewBatch(nil,
		change.NewReplace(change.MustParsePath("bar.baz"), ir.IRInt(43)),
		change.NewAppend(change.MustParsePath("qux"), ir.IRString(" world")),
	)

	jsonPath := writeFile(t, dir, "change.json",
		`{"op":"batch","path":[],"changes":[{"op":"replace","path":["bar","baz"],"value":43},{"op":"append","path":["qux"],"value":" world"}]}`)
	c, err := LoadChange(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, want, c)

	yamlPath := writeFile(t, dir, "change.yaml", `op: batch
path: []
changes:
  - {op: replace, path: [bar, baz], value: 43}
  - {op: append, path: [qux], value: " world"}
`)
	c, err = LoadChange(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, want, c)

	_, err = LoadChange(writeFile(t, dir, "bad.json", `{"op":"delete","path":[]}`))
	assert.Error(t, err)
}
