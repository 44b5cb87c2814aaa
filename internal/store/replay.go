package store

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// Replay rebuilds the current encoded value of a stream by applying every
// change to the base in seq order.
func (s *Store) Replay(ctx context.Context, streamID string) (ir.IRValue, error) {
	return s.ReplayTo(ctx, streamID, math.MaxInt64)
}

// ReplayTo rebuilds the encoded value of a stream as of uptoSeq.
// ReplayTo(ctx, id, 0) returns the base.
func (s *Store) ReplayTo(ctx context.Context, streamID string, uptoSeq int64) (ir.IRValue, error) {
	st, err := s.ReadBase(ctx, streamID)
	if err != nil {
		return nil, err
	}

	records, err := s.ReadChangesTo(ctx, streamID, uptoSeq)
	if err != nil {
		return nil, err
	}

	v := st.Base
	for _, rec := range records {
		v, err = adapter.ApplyIR(v, rec.Change)
		if err != nil {
			return nil, fmt.Errorf("replay %s at seq %d: %w", streamID, rec.Seq, err)
		}
	}
	return v, nil
}

// Squash compacts every change of a stream into one. Applying the result
// to the base gives the same value as Replay. Returns nil for a stream
// with no changes.
func (s *Store) Squash(ctx context.Context, streamID string) (*change.Change, error) {
	records, err := s.ReadChanges(ctx, streamID, 0)
	if err != nil {
		return nil, err
	}

	changes := make([]*change.Change, len(records))
	for i, rec := range records {
		changes[i] = rec.Change
	}

	c, err := change.Squash(adapter.IRApplier{}, changes...)
	if err != nil {
		return nil, fmt.Errorf("squash %s: %w", streamID, err)
	}
	return c, nil
}
