package change

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Path
	}{
		{"root", "", nil},
		{"single field", "qux", Path{Field("qux")}},
		{"nested fields", "bar.baz", Path{Field("bar"), Field("baz")}},
		{"index", "items[2]", Path{Field("items"), Index(2)}},
		{"index then field", "items[2].name", Path{Field("items"), Index(2), Field("name")}},
		{"leading index", "[0]", Path{Index(0)}},
		{"consecutive indices", "grid[1][3]", Path{Field("grid"), Index(1), Index(3)}},
		{"quoted dotted key", `meta["a.b"].c`, Path{Field("meta"), Field("a.b"), Field("c")}},
		{"quoted bracket key", `["x[0]"]`, Path{Field("x[0]")}},
		{"quoted empty key", `m[""]`, Path{Field("m"), Field("")}},
		{"quoted escapes", `m["say \"hi\""]`, Path{Field("m"), Field(`say "hi"`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParsePath_Errors(t *testing.T) {
	for _, in := range []string{"a..b", "a.", "items[", "items[x]", `m["a"`, `m["a`, `m["a"x]`} {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePath(in)
			assert.Error(t, err)
		})
	}
}

func TestPath_StringRoundTripsAnyName(t *testing.T) {
	for _, name := range []string{"a.b", "[0]", "x]", `"`, "", "plain", `back\slash`} {
		t.Run(name, func(t *testing.T) {
			p := Path{Field(name), Index(1), Field(name)}
			got, err := ParsePath(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestPath_JoinDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = Field("a")

	left := base.Join(Path{Field("b")})
	right := base.Join(Path{Field("c")})

	assert.Equal(t, "a.b", left.String())
	assert.Equal(t, "a.c", right.String())
	assert.Len(t, base, 1)
}

func TestPath_Reverse(t *testing.T) {
	p := Path{Field("baz"), Field("bar"), Index(0)}
	p.Reverse()
	assert.Equal(t, Path{Index(0), Field("bar"), Field("baz")}, p)
}

func TestSegment_JSON(t *testing.T) {
	p := Path{Field("items"), Index(3), Field("name")}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `["items",3,"name"]`, string(data))

	var back Path
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestPath_RootMarshalsAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(Path(nil))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestSegment_KeyDistinguishesIndexFromName(t *testing.T) {
	assert.NotEqual(t, Field("0").Key(), Index(0).Key())
}
