package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/morph/internal/ir"
)

// WriteBase creates a stream with its base value and returns it with
// BaseHash filled in.
//
// Writing the same stream twice is a no-op. Writing a stream ID that
// already exists with a different base is an error.
func (s *Store) WriteBase(ctx context.Context, st Stream) (Stream, error) {
	if st.ID == "" {
		return Stream{}, errors.New("write base: stream id is empty")
	}
	if st.Base == nil {
		st.Base = ir.IRNull{}
	}

	baseJSON, err := marshalValue(st.Base)
	if err != nil {
		return Stream{}, fmt.Errorf("write base: %w", err)
	}
	hash, err := ir.ValueHash(st.Base)
	if err != nil {
		return Stream{}, fmt.Errorf("write base: %w", err)
	}
	st.BaseHash = hash

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO streams (id, root_type, adapter, base, base_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, st.ID, st.RootType, st.Adapter, baseJSON, st.BaseHash)
	if err != nil {
		return Stream{}, fmt.Errorf("write base: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Stream{}, fmt.Errorf("write base: %w", err)
	}
	if n == 0 {
		existing, err := s.ReadBase(ctx, st.ID)
		if err != nil {
			return Stream{}, fmt.Errorf("write base: %w", err)
		}
		if existing.BaseHash != st.BaseHash {
			return Stream{}, fmt.Errorf("write base: stream %q already exists with a different base", st.ID)
		}
	}

	return st, nil
}

// WriteChange appends rec to its stream and returns it with ID and Leaves
// filled in. The stream must exist and rec.Seq must be positive.
//
// Uses ON CONFLICT(id) DO NOTHING: rewriting an identical record is a
// no-op. A different change at an existing (stream, seq) violates the
// UNIQUE constraint and returns an error.
func (s *Store) WriteChange(ctx context.Context, rec Record) (Record, error) {
	if rec.Change == nil {
		return Record{}, errors.New("write change: change is nil")
	}
	if rec.Seq <= 0 {
		return Record{}, fmt.Errorf("write change: seq must be positive, got %d", rec.Seq)
	}

	enc, changeJSON, err := encodeChange(rec.Change)
	if err != nil {
		return Record{}, fmt.Errorf("write change: %w", err)
	}
	id, err := ir.ChangeID(rec.StreamID, rec.Seq, enc)
	if err != nil {
		return Record{}, fmt.Errorf("write change: %w", err)
	}
	rec.ID = id
	rec.Leaves = rec.Change.Count()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO changes (id, stream_id, seq, session_id, change, leaves)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.StreamID, rec.Seq, rec.SessionID, changeJSON, rec.Leaves)
	if err != nil {
		return Record{}, fmt.Errorf("write change: %w", err)
	}

	return rec, nil
}
