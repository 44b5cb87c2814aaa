package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func newRoot() any {
	return map[string]any{
		"name":  "svc",
		"tags":  []any{"a", "b"},
		"inner": map[string]any{"n": int64(1)},
	}
}

func TestApplyStep(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want any
	}{
		{
			name: "set nested",
			step: Step{Op: OpSet, Path: "inner.n", Value: 2},
			want: map[string]any{"name": "svc", "tags": []any{"a", "b"}, "inner": map[string]any{"n": int64(2)}},
		},
		{
			name: "set new key",
			step: Step{Op: OpSet, Path: "inner.m", Value: "x"},
			want: map[string]any{"name": "svc", "tags": []any{"a", "b"}, "inner": map[string]any{"n": int64(1), "m": "x"}},
		},
		{
			name: "set root",
			step: Step{Op: OpSet, Path: "", Value: []any{1}},
			want: []any{int64(1)},
		},
		{
			name: "append string",
			step: Step{Op: OpAppend, Path: "name", Value: "-2"},
			want: map[string]any{"name": "svc-2", "tags": []any{"a", "b"}, "inner": map[string]any{"n": int64(1)}},
		},
		{
			name: "append element",
			step: Step{Op: OpAppend, Path: "tags", Value: "c"},
			want: map[string]any{"name": "svc", "tags": []any{"a", "b", "c"}, "inner": map[string]any{"n": int64(1)}},
		},
		{
			name: "append list",
			step: Step{Op: OpAppend, Path: "tags", Value: []any{"c", "d"}},
			want: map[string]any{"name": "svc", "tags": []any{"a", "b", "c", "d"}, "inner": map[string]any{"n": int64(1)}},
		},
		{
			name: "delete key",
			step: Step{Op: OpDelete, Path: "inner.n"},
			want: map[string]any{"name": "svc", "tags": []any{"a", "b"}, "inner": map[string]any{}},
		},
		{
			name: "delete element",
			step: Step{Op: OpDelete, Path: "tags[0]"},
			want: map[string]any{"name": "svc", "tags": []any{"b"}, "inner": map[string]any{"n": int64(1)}},
		},
		{
			name: "truncate list",
			step: Step{Op: OpTruncate, Path: "tags", Len: intPtr(0)},
			want: map[string]any{"name": "svc", "tags": []any{}, "inner": map[string]any{"n": int64(1)}},
		},
		{
			name: "truncate string",
			step: Step{Op: OpTruncate, Path: "name", Len: intPtr(1)},
			want: map[string]any{"name": "s", "tags": []any{"a", "b"}, "inner": map[string]any{"n": int64(1)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRoot()
			require.NoError(t, applyStep(&root, tt.step))
			assert.Equal(t, tt.want, root)
		})
	}
}

func TestApplyStep_Errors(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"missing parent", Step{Op: OpSet, Path: "missing.x", Value: 1}},
		{"index into object", Step{Op: OpSet, Path: "inner[0]", Value: 1}},
		{"field into array", Step{Op: OpSet, Path: "tags.x", Value: 1}},
		{"out of range", Step{Op: OpSet, Path: "tags[5]", Value: 1}},
		{"descend into scalar", Step{Op: OpSet, Path: "name.x", Value: 1}},
		{"append number to string", Step{Op: OpAppend, Path: "name", Value: 1}},
		{"append to map", Step{Op: OpAppend, Path: "inner", Value: "x"}},
		{"truncate too long", Step{Op: OpTruncate, Path: "tags", Len: intPtr(3)}},
		{"truncate number", Step{Op: OpTruncate, Path: "inner.n", Len: intPtr(0)}},
		{"delete missing key", Step{Op: OpDelete, Path: "inner.m"}},
		{"delete out of range", Step{Op: OpDelete, Path: "tags[2]"}},
		{"delete root", Step{Op: OpDelete, Path: ""}},
		{"unknown op", Step{Op: "insert", Path: "name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRoot()
			assert.Error(t, applyStep(&root, tt.step))
		})
	}
}
