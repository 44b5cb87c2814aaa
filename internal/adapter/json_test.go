package adapter

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

type Bar struct {
	Baz int `json:"baz"`
}

type Foo struct {
	Bar Bar    `json:"bar"`
	Qux string `json:"qux"`
}

type Owner struct {
	Email string `json:"email"`
}

type Settings struct {
	Name   string         `json:"name"`
	Tags   []string       `json:"tags"`
	Limits map[string]int `json:"limits"`
	Owner  *Owner         `json:"owner"`
	Ratio  float64        `json:"ratio"`
	Ports  map[int]string `json:"ports"`
	Matrix [][]int        `json:"matrix"`
}

func newSettings() Settings {
	return Settings{
		Name:   "svc",
		Tags:   []string{"a"},
		Limits: map[string]int{"cpu": 1},
		Ratio:  0.5,
		Ports:  map[int]string{80: "http"},
		Matrix: [][]int{{1, 2}, {3}},
	}
}

func observeFoo(t *testing.T) *change.Change {
	t.Helper()
	foo := Foo{Bar: Bar{Baz: 42}, Qux: "hello"}
	c, err := Observe(JSON{}, &foo, func(f *Foo) error {
		f.Bar.Baz = 43
		f.Qux += " world"
		return nil
	})
	require.NoError(t, err)
	return c
}

func TestJSON_Render(t *testing.T) {
	c := observeFoo(t)

	require.Equal(t, change.Batch, c.Operation.Kind)
	leaves := c.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, ir.IRInt(43), leaves[0].Value)
	assert.Equal(t, ir.IRString(" world"), leaves[1].Value)
}

func TestJSON_RenderNil(t *testing.T) {
	out, err := Render(JSON{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestJSON_EncodeErrors(t *testing.T) {
	_, err := JSON{}.Encode(make(chan int))
	assert.Error(t, err)

	c := change.NewReplace(change.Path{change.Field("x")}, func() {})
	_, err = Render(JSON{}, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json adapter")
}

func TestJSON_ApplyLaw(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"append string", func(s *Settings) { s.Name += "-v2" }},
		{"append slice", func(s *Settings) { s.Tags = append(s.Tags, "b", "c") }},
		{"truncate slice", func(s *Settings) { s.Tags = nil }},
		{"map add", func(s *Settings) { s.Limits["mem"] = 512 }},
		{"map delete", func(s *Settings) { delete(s.Limits, "cpu") }},
		{"int keys", func(s *Settings) { s.Ports[443] = "https" }},
		{"pointer set", func(s *Settings) { s.Owner = &Owner{Email: "a@b.c"} }},
		{"float to integral", func(s *Settings) { s.Ratio = 2 }},
		{"nested sequence", func(s *Settings) {
			s.Matrix[1] = append(s.Matrix[1], 4)
			s.Matrix[0][0] = 9
		}},
		{"everything", func(s *Settings) {
			s.Name = "other"
			s.Tags[0] = "z"
			s.Limits["cpu"]++
			s.Owner = &Owner{}
			s.Matrix = append(s.Matrix, []int{5})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSettings()
			before, err := EncodeIR(s)
			require.NoError(t, err)

			c, err := Observe(JSON{}, &s, func(s *Settings) error {
				tt.mutate(s)
				return nil
			})
			require.NoError(t, err)
			require.NotNil(t, c)

			after, err := ApplyIR(before, c)
			require.NoError(t, err)
			want, err := EncodeIR(s)
			require.NoError(t, err)
			assert.True(t, ir.Equal(want, after), "want %v\ngot  %v", want, after)
		})
	}
}

type Profile struct {
	Name  string            `json:"name,omitempty"`
	Tags  []string          `json:"tags,omitempty"`
	Title string            `morph:"heading" json:"title"`
	Extra map[string]string `json:"extra,omitempty"`
	Owner *Owner            `json:"owner,omitempty"`
}

func TestEncodeIR_FollowsObservationPaths(t *testing.T) {
	got, err := EncodeIR(Profile{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"name":    ir.IRString(""),
		"tags":    ir.IRNull{},
		"heading": ir.IRString(""),
		"extra":   ir.IRNull{},
		"owner":   ir.IRNull{},
	}, got)
}

func TestJSON_ApplyLawTaggedFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"omitted string set", func(p *Profile) { p.Name = "ann" }},
		{"omitted slice grows", func(p *Profile) { p.Tags = append(p.Tags, "x") }},
		{"renamed field", func(p *Profile) { p.Title = "lead" }},
		{"omitted map entry", func(p *Profile) { p.Extra = map[string]string{"k": "v"} }},
		{"omitted pointer set", func(p *Profile) { p.Owner = &Owner{Email: "a@b.c"} }},
		{"everything", func(p *Profile) {
			p.Name = "ann"
			p.Tags = []string{"x"}
			p.Title += "lead"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Profile
			before, err := EncodeIR(p)
			require.NoError(t, err)

			c, err := Observe(JSON{}, &p, func(p *Profile) error {
				tt.mutate(p)
				return nil
			})
			require.NoError(t, err)
			require.NotNil(t, c)

			after, err := ApplyIR(before, c)
			require.NoError(t, err)
			want, err := EncodeIR(p)
			require.NoError(t, err)
			assert.True(t, ir.Equal(want, after), "want %v\ngot  %v", want, after)
		})
	}
}

func TestIRApplier_Errors(t *testing.T) {
	base := func() ir.IRValue {
		return ir.IRObject{
			"name": ir.IRString("svc"),
			"n":    ir.IRInt(1),
			"list": ir.IRArray{ir.IRInt(1)},
		}
	}
	tests := []struct {
		name    string
		change  *change.Change
		isIndex bool
	}{
		{"missing key below", change.NewReplace(change.MustParsePath("x.y"), ir.IRInt(1)), true},
		{"append to missing key", change.NewAppend(change.MustParsePath("x"), ir.IRString("a")), true},
		{"index into object", change.NewReplace(change.Path{change.Index(0)}, ir.IRInt(1)), true},
		{"out of range", change.NewReplace(change.MustParsePath("list[3]"), ir.IRInt(1)), true},
		{"descend into scalar", change.NewReplace(change.MustParsePath("n.x"), ir.IRInt(1)), true},
		{"append onto number", change.NewAppend(change.MustParsePath("n"), ir.IRInt(1)), false},
		{"append array onto string", change.NewAppend(change.MustParsePath("name"), ir.IRArray{}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyIR(base(), tt.change)
			require.Error(t, err)
			if tt.isIndex {
				assert.True(t, change.IsIndexError(err), "got %v", err)
			} else {
				assert.True(t, change.IsOperationError(err), "got %v", err)
			}
		})
	}
}

func TestIRApplier_CreatesKeyAndClonesPayload(t *testing.T) {
	payload := ir.IRArray{ir.IRString("a")}
	c := change.NewReplace(change.MustParsePath("tags"), payload)

	out, err := IRApplier{}.Apply(ir.IRObject{}, c)
	require.NoError(t, err)
	out.(ir.IRObject)["tags"].(ir.IRArray)[0] = ir.IRString("mutated")
	assert.Equal(t, ir.IRString("a"), payload[0])

	// plain Go targets are encoded first
	out, err = IRApplier{}.Apply(map[string]any{"n": 1}, change.NewReplace(change.MustParsePath("n"), 2))
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"n": ir.IRInt(2)}, out)
}

func TestIRApplier_Squash(t *testing.T) {
	s := newSettings()
	var changes []*change.Change
	for _, suffix := range []string{"-a", "-b", "-c"} {
		c, err := Observe(JSON{}, &s, func(s *Settings) error {
			s.Name += suffix
			return nil
		})
		require.NoError(t, err)
		changes = append(changes, c)
	}

	squashed, err := change.Squash(IRApplier{}, changes...)
	require.NoError(t, err)
	assert.Equal(t, change.NewAppend(change.MustParsePath("name"), ir.IRString("-a-b-c")), squashed)
}

func TestMarshalChange_Golden(t *testing.T) {
	data, err := MarshalChange(observeFoo(t))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "foo_change", data)
}

func TestMarshalChange_RoundTrip(t *testing.T) {
	c := observeFoo(t)
	data, err := MarshalChange(c)
	require.NoError(t, err)

	decoded, err := UnmarshalChange(data)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)

	data, err = MarshalChange(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
	decoded, err = UnmarshalChange(data)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestMarshalChange_IndexSegments(t *testing.T) {
	c := change.NewReplace(change.Path{change.Field("items"), change.Index(2)}, "x")
	data, err := MarshalChange(c)
	require.NoError(t, err)
	assert.Equal(t, `{"op":"replace","path":["items",2],"value":"x"}`, string(data))
}

func TestUnmarshalChange_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an object", `[]`},
		{"unknown field", `{"op":"replace","path":[],"value":1,"extra":true}`},
		{"missing path", `{"op":"replace","value":1}`},
		{"bad segment", `{"op":"replace","path":[true],"value":1}`},
		{"negative index", `{"op":"replace","path":[-1],"value":1}`},
		{"unknown op", `{"op":"delete","path":[],"value":1}`},
		{"missing value", `{"op":"append","path":["a"]}`},
		{"replace with changes", `{"op":"replace","path":[],"value":1,"changes":[]}`},
		{"batch with value", `{"op":"batch","path":[],"value":1}`},
		{"batch of one", `{"op":"batch","path":[],"changes":[{"op":"replace","path":["a"],"value":1}]}`},
		{"null child", `{"op":"batch","path":[],"changes":[null,null]}`},
		{"trailing data", `null null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalChange([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}
