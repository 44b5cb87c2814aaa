package testutil

import "sync/atomic"

// DeterministicClock is a journal.Sequencer that starts at 0 on every
// construction, so two runs of one scenario journal identical seqs.
type DeterministicClock struct {
	seq atomic.Int64
}

// NewDeterministicClock creates a clock at 0. The first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64 { return c.seq.Add(1) }

func (c *DeterministicClock) Current() int64 { return c.seq.Load() }
