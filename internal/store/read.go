package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadBase retrieves a stream by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadBase(ctx context.Context, id string) (Stream, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, root_type, adapter, base, base_hash
		FROM streams
		WHERE id = ?
	`, id)

	var st Stream
	var baseJSON string
	if err := row.Scan(&st.ID, &st.RootType, &st.Adapter, &baseJSON, &st.BaseHash); err != nil {
		return Stream{}, fmt.Errorf("read stream %q: %w", id, err)
	}

	base, err := unmarshalValue(baseJSON)
	if err != nil {
		return Stream{}, fmt.Errorf("read stream %q: %w", id, err)
	}
	st.Base = base

	return st, nil
}

// ReadChanges returns the changes of a stream with seq > afterSeq.
// Results are ordered by seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadChanges(ctx context.Context, streamID string, afterSeq int64) ([]Record, error) {
	return s.readChanges(ctx, `
		SELECT id, stream_id, seq, session_id, change, leaves
		FROM changes
		WHERE stream_id = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, streamID, afterSeq)
}

// ReadChangesTo returns the changes of a stream with seq <= uptoSeq.
func (s *Store) ReadChangesTo(ctx context.Context, streamID string, uptoSeq int64) ([]Record, error) {
	return s.readChanges(ctx, `
		SELECT id, stream_id, seq, session_id, change, leaves
		FROM changes
		WHERE stream_id = ? AND seq <= ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, streamID, uptoSeq)
}

func (s *Store) readChanges(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var changeJSON string

	if err := rows.Scan(
		&rec.ID, &rec.StreamID, &rec.Seq, &rec.SessionID, &changeJSON, &rec.Leaves,
	); err != nil {
		return Record{}, fmt.Errorf("scan change: %w", err)
	}

	c, err := unmarshalChange(changeJSON)
	if err != nil {
		return Record{}, fmt.Errorf("change %s: %w", rec.ID, err)
	}
	rec.Change = c

	return rec, nil
}

// LastSeq returns the highest seq recorded for a stream, or 0 when the
// stream has no changes or does not exist.
func (s *Store) LastSeq(ctx context.Context, streamID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM stream_heads WHERE stream_id = ?
	`, streamID).Scan(&seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// ListStreams returns all streams ordered by ID.
func (s *Store) ListStreams(ctx context.Context) ([]Stream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root_type, adapter, base, base_hash
		FROM streams
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	streams := []Stream{}
	for rows.Next() {
		var st Stream
		var baseJSON string
		if err := rows.Scan(&st.ID, &st.RootType, &st.Adapter, &baseJSON, &st.BaseHash); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		if st.Base, err = unmarshalValue(baseJSON); err != nil {
			return nil, fmt.Errorf("stream %s: %w", st.ID, err)
		}
		streams = append(streams, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
	}

	return streams, nil
}
