package harness

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// dumper renders leaves for failure reports. Pointer addresses and map
// order would make reports differ between runs.
var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// AssertionError is returned when an assertion fails.
// It includes the leaves of the change to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Leaves   []change.Leaf // Leaves of the whole-scenario change
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Leaves) > 0 {
		fmt.Fprintf(&buf, "\nLeaves:\n")
		for i, leaf := range e.Leaves {
			fmt.Fprintf(&buf, "  [%d] %s %s %s", i+1, leaf.Kind, leaf.Path, dumper.Sdump(leaf.Value))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and
// returns the failures in assertion order.
func EvaluateAssertions(assertions []Assertion, result *Result) []error {
	var errs []error
	for i, a := range assertions {
		if err := evaluateAssertion(a, result); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, result *Result) error {
	leaves := result.Tree.Leaves()
	switch a.Type {
	case AssertChangeContains:
		return assertChangeContains(leaves, a)
	case AssertChangeOrder:
		return assertChangeOrder(leaves, a)
	case AssertChangeCount:
		return assertChangeCount(leaves, a)
	case AssertFinalValue:
		return assertFinalValue(result.Final, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertChangeContains checks for a leaf at the path. Op and value narrow
// the match when given.
func assertChangeContains(leaves []change.Leaf, a Assertion) error {
	var want ir.IRValue
	if a.Value != nil {
		v, err := ir.FromAny(a.Value)
		if err != nil {
			return fmt.Errorf("change_contains value: %w", err)
		}
		want = v
	}

	for _, leaf := range leaves {
		if a.Path != "" && leaf.Path.String() != canonicalPath(a.Path) {
			continue
		}
		if a.Op != "" && leaf.Kind.String() != a.Op {
			continue
		}
		if want != nil {
			got, _ := leaf.Value.(ir.IRValue)
			if !ir.Equal(want, got) {
				continue
			}
		}
		return nil
	}

	expected := strings.TrimSpace(strings.Join([]string{a.Op, "leaf at", fmt.Sprintf("%q", a.Path)}, " "))
	if want != nil {
		expected += " with value " + render(want)
	}
	return &AssertionError{
		Type:     AssertChangeContains,
		Expected: expected,
		Actual:   "not found in change",
		Leaves:   leaves,
	}
}

// assertChangeOrder checks that the paths appear in order among the
// leaves. Other leaves may appear in between.
func assertChangeOrder(leaves []change.Leaf, a Assertion) error {
	positions := make(map[string]int)
	for i, leaf := range leaves {
		p := leaf.Path.String()
		if _, seen := positions[p]; !seen {
			positions[p] = i + 1 // 1-indexed for readability
		}
	}

	for _, p := range a.Paths {
		if positions[canonicalPath(p)] == 0 {
			return &AssertionError{
				Type:     AssertChangeOrder,
				Expected: fmt.Sprintf("all paths present: %v", a.Paths),
				Actual:   fmt.Sprintf("missing path: %q", p),
				Leaves:   leaves,
			}
		}
	}

	for i := 1; i < len(a.Paths); i++ {
		prev, curr := a.Paths[i-1], a.Paths[i]
		pp, cp := positions[canonicalPath(prev)], positions[canonicalPath(curr)]
		if pp >= cp {
			return &AssertionError{
				Type:     AssertChangeOrder,
				Expected: fmt.Sprintf("paths in order: %v", a.Paths),
				Actual:   fmt.Sprintf("%q (pos %d) should be before %q (pos %d)", prev, pp, curr, cp),
				Leaves:   leaves,
			}
		}
	}
	return nil
}

// assertChangeCount checks the number of leaves.
func assertChangeCount(leaves []change.Leaf, a Assertion) error {
	if len(leaves) != *a.Count {
		return &AssertionError{
			Type:     AssertChangeCount,
			Expected: fmt.Sprintf("%d leaves", *a.Count),
			Actual:   fmt.Sprintf("%d leaves", len(leaves)),
			Leaves:   leaves,
		}
	}
	return nil
}

// assertFinalValue checks the final value at the path.
func assertFinalValue(final ir.IRValue, a Assertion) error {
	want, err := ir.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("final_value value: %w", err)
	}
	got, err := lookup(final, change.MustParsePath(a.Path))
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s at %q", render(want), a.Path),
			Actual:   err.Error(),
		}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s at %q", render(want), a.Path),
			Actual:   render(got),
		}
	}
	return nil
}

// lookup returns the value at path.
func lookup(v ir.IRValue, path change.Path) (ir.IRValue, error) {
	for i, seg := range path {
		switch node := v.(type) {
		case ir.IRObject:
			child, ok := node[seg.Name()]
			if seg.IsIndex() || !ok {
				return nil, fmt.Errorf("no value at %q", path[:i+1].String())
			}
			v = child
		case ir.IRArray:
			if !seg.IsIndex() || seg.Index() >= len(node) {
				return nil, fmt.Errorf("no value at %q", path[:i+1].String())
			}
			v = node[seg.Index()]
		default:
			return nil, fmt.Errorf("no value at %q", path[:i+1].String())
		}
	}
	return v, nil
}

// canonicalPath renders a user-written path the way change.Path.String
// does. Paths were validated when the scenario was loaded.
func canonicalPath(s string) string {
	return change.MustParsePath(s).String()
}
