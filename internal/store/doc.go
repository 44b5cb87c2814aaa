// Package store provides SQLite-backed durable storage for change journals.
//
// A journal is a set of streams. Each stream holds the encoded base value
// of one observed root and the append-only sequence of changes recorded
// against it:
//   - streams: id, root type, adapter name, canonical base value and its hash
//   - changes: content-addressed change records in wire form
//
// # Ordering
//
// All ordering uses the logical seq column, never timestamps. Queries over
// changes use ORDER BY seq ASC, id COLLATE BINARY ASC so reads are
// identical across replays.
//
// # Identity
//
// Change IDs are computed by ir.ChangeID over the stream, the seq and the
// canonical wire form. Writing the same record twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Changes must reference an existing stream
package store
