package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// ChangeOutput is the structured payload of commands that print a change.
type ChangeOutput struct {
	Changed bool `json:"changed" yaml:"changed"`
	Leaves  int  `json:"leaves" yaml:"leaves"`

	// Change is the wire form, null when nothing changed.
	Change any `json:"change" yaml:"change"`
}

func newChangeOutput(c *change.Change) (ChangeOutput, error) {
	wire, err := adapter.ChangeToIR(c)
	if err != nil {
		return ChangeOutput{}, err
	}
	return ChangeOutput{
		Changed: c != nil,
		Leaves:  c.Count(),
		Change:  ir.ToAny(wire),
	}, nil
}

// formatLeaves renders one line per leaf:
//
//	replace bar.baz 43
//	append  qux " world"
func formatLeaves(c *change.Change) string {
	if c == nil {
		return "No changes."
	}
	var b strings.Builder
	for i, leaf := range c.Leaves() {
		if i > 0 {
			b.WriteByte('\n')
		}
		path := leaf.Path.String()
		if path == "" {
			path = "(root)"
		}
		fmt.Fprintf(&b, "%-7s %s %s", leaf.Kind, path, formatValue(leaf.Value))
	}
	return b.String()
}

// formatValue renders a payload as canonical JSON.
func formatValue(v any) string {
	iv, err := adapter.EncodeIR(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	data, err := ir.MarshalCanonical(iv)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
