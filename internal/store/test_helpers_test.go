package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBase() ir.IRObject {
	return ir.IRObject{
		"bar": ir.IRObject{"baz": ir.IRInt(42)},
		"qux": ir.IRString("hello"),
	}
}

// createTestStream writes the Foo base under id.
func createTestStream(t *testing.T, s *Store, id string) Stream {
	t.Helper()
	st, err := s.WriteBase(context.Background(), Stream{
		ID:       id,
		RootType: "main.Foo",
		Adapter:  "json",
		Base:     testBase(),
	})
	if err != nil {
		t.Fatalf("WriteBase() failed: %v", err)
	}
	return st
}

func writeTestChange(t *testing.T, s *Store, stream string, seq int64, c *change.Change) Record {
	t.Helper()
	rec, err := s.WriteChange(context.Background(), Record{
		StreamID:  stream,
		Seq:       seq,
		SessionID: "session-test",
		Change:    c,
	})
	if err != nil {
		t.Fatalf("WriteChange(seq=%d) failed: %v", seq, err)
	}
	return rec
}
