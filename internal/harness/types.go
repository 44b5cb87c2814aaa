package harness

import (
	"fmt"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// TraceEvent is one step journaled in its own session.
type TraceEvent struct {
	Step      int    `json:"step"`
	Op        string `json:"op"`
	Path      string `json:"path"`
	SessionID string `json:"session_id"`

	// Seq is 0 when the step changed nothing.
	Seq int64 `json:"seq"`

	// Change is the wire form of the step's change, ir.IRNull when the
	// step changed nothing.
	Change ir.IRValue `json:"change"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every law, expectation and assertion held.
	Pass bool `json:"pass"`

	// Change is the wire form of the whole-scenario change, ir.IRNull
	// when nothing changed.
	Change ir.IRValue `json:"change"`

	// Final is the encoded value after all steps.
	Final ir.IRValue `json:"final"`

	// Trace holds the per-step journal records in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tree is the whole-scenario change with encoded payloads.
	Tree *change.Change `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Change: ir.IRNull{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
