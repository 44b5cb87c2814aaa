package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

var (
	bazTo43  = change.NewReplace(change.MustParsePath("bar.baz"), 43)
	quxWorld = change.NewAppend(change.MustParsePath("qux"), " world")
	quxBang  = change.NewAppend(change.MustParsePath("qux"), "!")
)

func TestWriteBase(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	st := createTestStream(t, s, "s1")
	assert.Equal(t, ir.MustValueHash(testBase()), st.BaseHash)

	got, err := s.ReadBase(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, "main.Foo", got.RootType)
	assert.Equal(t, "json", got.Adapter)
	assert.True(t, ir.Equal(testBase(), got.Base))

	// same base again is a no-op
	_, err = s.WriteBase(ctx, Stream{ID: "s1", RootType: "main.Foo", Adapter: "json", Base: testBase()})
	require.NoError(t, err)

	_, err = s.WriteBase(ctx, Stream{ID: "s1", Base: ir.IRString("other")})
	assert.ErrorContains(t, err, "different base")

	_, err = s.WriteBase(ctx, Stream{Base: ir.IRNull{}})
	assert.Error(t, err)
}

func TestReadBase_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadBase(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWriteChange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestStream(t, s, "s1")

	c := change.NewBatch(nil, bazTo43, quxWorld)
	rec := writeTestChange(t, s, "s1", 1, c)
	assert.Equal(t, 2, rec.Leaves)

	enc, err := adapter.ChangeToIR(c)
	require.NoError(t, err)
	wantID, err := ir.ChangeID("s1", 1, enc)
	require.NoError(t, err)
	assert.Equal(t, wantID, rec.ID)

	// identical rewrite is a no-op
	again := writeTestChange(t, s, "s1", 1, c)
	assert.Equal(t, rec.ID, again.ID)

	records, err := s.ReadChanges(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "session-test", records[0].SessionID)
	assert.Equal(t, change.NewBatch(nil,
		change.NewReplace(change.MustParsePath("bar.baz"), ir.IRInt(43)),
		change.NewAppend(change.MustParsePath("qux"), ir.IRString(" world")),
	), records[0].Change)
}

func TestWriteChange_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestStream(t, s, "s1")
	writeTestChange(t, s, "s1", 1, bazTo43)

	tests := []struct {
		name string
		rec  Record
	}{
		{"nil change", Record{StreamID: "s1", Seq: 2}},
		{"zero seq", Record{StreamID: "s1", Change: quxBang}},
		{"unknown stream", Record{StreamID: "ghost", Seq: 1, Change: quxBang}},
		{"seq taken", Record{StreamID: "s1", Seq: 1, Change: quxBang}},
		{"unencodable payload", Record{StreamID: "s1", Seq: 2, Change: change.NewReplace(nil, func() {})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.WriteChange(ctx, tt.rec)
			assert.Error(t, err)
		})
	}
}

func TestReadChanges_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestStream(t, s, "s1")
	createTestStream(t, s, "s2")

	// written out of order
	writeTestChange(t, s, "s1", 3, quxBang)
	writeTestChange(t, s, "s1", 1, bazTo43)
	writeTestChange(t, s, "s2", 1, quxBang)
	writeTestChange(t, s, "s1", 2, quxWorld)

	records, err := s.ReadChanges(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.Seq)
		assert.Equal(t, "s1", rec.StreamID)
	}

	after, err := s.ReadChanges(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(3), after[0].Seq)

	empty, err := s.ReadChanges(ctx, "s1", 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	last, err := s.LastSeq(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	last, err = s.LastSeq(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestListStreams(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	streams, err := s.ListStreams(ctx)
	require.NoError(t, err)
	assert.NotNil(t, streams)
	assert.Empty(t, streams)

	createTestStream(t, s, "b")
	createTestStream(t, s, "a")

	streams, err = s.ListStreams(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "a", streams[0].ID)
	assert.Equal(t, "b", streams[1].ID)
}

func TestReplay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestStream(t, s, "s1")

	writeTestChange(t, s, "s1", 1, change.NewBatch(nil, bazTo43, quxWorld))
	writeTestChange(t, s, "s1", 2, quxBang)

	got, err := s.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"bar": ir.IRObject{"baz": ir.IRInt(43)},
		"qux": ir.IRString("hello world!"),
	}, got)

	base, err := s.ReplayTo(ctx, "s1", 0)
	require.NoError(t, err)
	assert.True(t, ir.Equal(testBase(), base))

	mid, err := s.ReplayTo(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("hello world"), mid.(ir.IRObject)["qux"])

	_, err = s.Replay(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReplay_BrokenChange(t *testing.T) {
	s := createTestStore(t)
	createTestStream(t, s, "s1")
	writeTestChange(t, s, "s1", 1, change.NewReplace(change.MustParsePath("missing.deep"), 1))

	_, err := s.Replay(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, change.IsIndexError(err), "got %v", err)
}

func TestSquash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestStream(t, s, "s1")

	none, err := s.Squash(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, none)

	writeTestChange(t, s, "s1", 1, change.NewBatch(nil, bazTo43, quxWorld))
	writeTestChange(t, s, "s1", 2, quxBang)
	writeTestChange(t, s, "s1", 3, change.NewReplace(change.MustParsePath("bar"), map[string]int{"baz": 1}))
	writeTestChange(t, s, "s1", 4, change.NewReplace(change.MustParsePath("bar.baz"), 2))

	squashed, err := s.Squash(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, squashed.Count())

	// squash law: base + squashed == replay
	st, err := s.ReadBase(ctx, "s1")
	require.NoError(t, err)
	viaSquash, err := adapter.ApplyIR(st.Base, squashed)
	require.NoError(t, err)
	viaReplay, err := s.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ir.Equal(viaReplay, viaSquash), "replay %v\nsquash %v", viaReplay, viaSquash)
}
