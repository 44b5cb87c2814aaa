package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

func TestYAML_Encode(t *testing.T) {
	out, err := YAML{}.Encode(Foo{Bar: Bar{Baz: 1}, Qux: "true"})
	require.NoError(t, err)

	data, err := yaml.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, "bar:\n    baz: 1\nqux: \"true\"\n", string(data))
}

func TestYAML_NodeRoundTrip(t *testing.T) {
	v := ir.IRObject{
		"s":   ir.IRString("x"),
		"i":   ir.IRInt(-3),
		"f":   ir.IRFloat(2),
		"b":   ir.IRBool(true),
		"nil": ir.IRNull{},
		"arr": ir.IRArray{ir.IRInt(1), ir.IRString("2")},
	}
	back, err := NodeToIR(NodeFromIR(v))
	require.NoError(t, err)
	assert.True(t, ir.Equal(v, back), "got %v", back)
}

func TestYAML_ApplyLaw(t *testing.T) {
	s := newSettings()
	before, err := EncodeIR(s)
	require.NoError(t, err)
	doc := NodeFromIR(before)

	c, err := Observe(YAML{}, &s, func(s *Settings) error {
		s.Name += "!"
		s.Tags = append(s.Tags, "b")
		s.Limits["mem"] = 2
		s.Matrix[0][1] = 7
		return nil
	})
	require.NoError(t, err)

	out, err := NodeApplier{}.Apply(doc, c)
	require.NoError(t, err)
	got, err := NodeToIR(out.(*yaml.Node))
	require.NoError(t, err)
	want, err := EncodeIR(s)
	require.NoError(t, err)
	assert.True(t, ir.Equal(want, got), "want %v\ngot  %v", want, got)
}

func TestNodeApplier_ParsedDocument(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("name: svc\ntags: [a]\n"), &doc))

	c := change.NewBatch(nil,
		change.NewAppend(change.MustParsePath("name"), "-2"),
		change.NewAppend(change.MustParsePath("tags"), []string{"b"}),
		change.NewReplace(change.MustParsePath("owner"), Owner{Email: "x"}),
	)
	_, err := NodeApplier{}.Apply(&doc, c)
	require.NoError(t, err)

	got, err := NodeToIR(&doc)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"name":  ir.IRString("svc-2"),
		"tags":  ir.IRArray{ir.IRString("a"), ir.IRString("b")},
		"owner": ir.IRObject{"email": ir.IRString("x")},
	}, got)
}

func TestNodeApplier_Errors(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("n: 1\nlist: [1]\n"), &doc))

	_, err := NodeApplier{}.Apply(&doc, change.NewAppend(change.MustParsePath("n"), "x"))
	assert.True(t, change.IsOperationError(err), "got %v", err)

	_, err = NodeApplier{}.Apply(&doc, change.NewReplace(change.MustParsePath("list[4]"), 1))
	assert.True(t, change.IsIndexError(err), "got %v", err)

	_, err = NodeApplier{}.Apply(&doc, change.NewReplace(change.MustParsePath("x.y"), 1))
	assert.True(t, change.IsIndexError(err), "got %v", err)

	_, err = NodeApplier{}.Apply("not a node", change.NewReplace(nil, 1))
	assert.Error(t, err)
}

func TestNodeApplier_Concat(t *testing.T) {
	out, err := NodeApplier{}.Concat("ab", "cd")
	require.NoError(t, err)
	got, err := NodeToIR(out.(*yaml.Node))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("abcd"), got)

	_, err = NodeApplier{}.Concat("ab", 1)
	assert.Error(t, err)
}

func TestMarshalChangeYAML(t *testing.T) {
	c := observeFoo(t)

	data, err := MarshalChangeYAML(c)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "op: batch")
	assert.Contains(t, text, "path: [bar, baz]")
	assert.Contains(t, text, "op: append")

	decoded, err := UnmarshalChangeYAML(data)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestMarshalChangeYAML_Nil(t *testing.T) {
	data, err := MarshalChangeYAML(nil)
	require.NoError(t, err)

	decoded, err := UnmarshalChangeYAML(data)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
