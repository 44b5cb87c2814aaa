package store

import (
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// Stream is the head of a journal: the encoded value every recorded
// change applies to, in order.
type Stream struct {
	ID       string
	RootType string
	Adapter  string
	Base     ir.IRValue
	BaseHash string
}

// Record is one journaled change.
type Record struct {
	// ID is ir.ChangeID(StreamID, Seq, wire form). Computed on write.
	ID        string
	StreamID  string
	Seq       int64
	SessionID string

	// Change payloads are ir.IRValue when read back.
	Change *change.Change

	// Leaves is the number of Replace/Append leaves. Computed on write.
	Leaves int
}
