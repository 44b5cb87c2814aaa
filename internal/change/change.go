package change

import (
	"fmt"
	"strings"
)

// Kind tags an Operation.
type Kind int

const (
	// Replace means the entire sub-value at the path was replaced.
	Replace Kind = iota + 1

	// Append means the string or sequence at the path grew by a suffix.
	Append

	// Batch groups independent child changes under one path.
	Batch
)

// String returns the lowercase wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case Batch:
		return "batch"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "replace":
		return Replace, nil
	case "append":
		return Append, nil
	case "batch":
		return Batch, nil
	default:
		return 0, fmt.Errorf("unknown operation %q: must be replace, append or batch", s)
	}
}

// Operation is exactly one of Replace(Value), Append(Value) or
// Batch(Changes).
type Operation struct {
	Kind Kind

	// Value is the new sub-value for Replace and the appended fragment for
	// Append. Nil for Batch. Its representation depends on who built the
	// tree: Go values from the observer, adapter values after rendering.
	Value any

	// Changes holds the children of a Batch, in enumeration order.
	Changes []*Change
}

// Change is a (Path, Operation) pair. Batch operations make it recursive.
type Change struct {
	Path      Path
	Operation Operation
}

// NewReplace builds a Replace change.
func NewReplace(path Path, value any) *Change {
	return &Change{Path: path, Operation: Operation{Kind: Replace, Value: value}}
}

// NewAppend builds an Append change carrying only the fragment.
func NewAppend(path Path, fragment any) *Change {
	return &Change{Path: path, Operation: Operation{Kind: Append, Value: fragment}}
}

// NewBatch builds a Batch change. Children paths are relative to path.
func NewBatch(path Path, children ...*Change) *Change {
	return &Change{Path: path, Operation: Operation{Kind: Batch, Changes: children}}
}

// Build folds a list of sibling changes (paths relative to a common
// parent) into at most one change:
//   - none → nil
//   - one → that change
//   - several → Batch at the root of the parent
func Build(changes []*Change) *Change {
	switch len(changes) {
	case 0:
		return nil
	case 1:
		return changes[0]
	default:
		return NewBatch(nil, changes...)
	}
}

// Leaf is a flattened Replace or Append with its absolute path.
type Leaf struct {
	Path  Path
	Kind  Kind
	Value any
}

// Leaves flattens the tree into its Replace/Append leaves with absolute
// paths, in tree order.
func (c *Change) Leaves() []Leaf {
	var out []Leaf
	c.walk(nil, func(path Path, op Operation) {
		out = append(out, Leaf{Path: path, Kind: op.Kind, Value: op.Value})
	})
	return out
}

func (c *Change) walk(prefix Path, fn func(Path, Operation)) {
	if c == nil {
		return
	}
	path := prefix.Join(c.Path)
	if c.Operation.Kind == Batch {
		for _, child := range c.Operation.Changes {
			child.walk(path, fn)
		}
		return
	}
	if len(path) == 0 {
		path = nil
	}
	fn(path, c.Operation)
}

// Count returns the number of Replace/Append leaves in the tree.
func (c *Change) Count() int {
	n := 0
	c.walk(nil, func(Path, Operation) { n++ })
	return n
}

// MapValues returns a copy of the tree with every Replace/Append payload
// passed through fn. Paths and kinds are preserved.
func (c *Change) MapValues(fn func(Kind, any) (any, error)) (*Change, error) {
	if c == nil {
		return nil, nil
	}
	out := &Change{Path: append(Path(nil), c.Path...), Operation: Operation{Kind: c.Operation.Kind}}
	if c.Operation.Kind == Batch {
		out.Operation.Changes = make([]*Change, 0, len(c.Operation.Changes))
		for _, child := range c.Operation.Changes {
			mapped, err := child.MapValues(fn)
			if err != nil {
				return nil, err
			}
			out.Operation.Changes = append(out.Operation.Changes, mapped)
		}
		return out, nil
	}
	v, err := fn(c.Operation.Kind, c.Operation.Value)
	if err != nil {
		return nil, fmt.Errorf("%s at %q: %w", c.Operation.Kind, c.Path.String(), err)
	}
	out.Operation.Value = v
	return out, nil
}

// ReversePaths reverses the path of every node in the tree, in place.
// Builders that accumulate paths leaf-first call this exactly once on the
// finished tree.
func ReversePaths(c *Change) *Change {
	if c == nil {
		return nil
	}
	c.Path.Reverse()
	if len(c.Path) == 0 {
		c.Path = nil
	}
	for _, child := range c.Operation.Changes {
		ReversePaths(child)
	}
	return c
}

// String renders the tree one leaf per line, e.g.
//
//	replace bar.baz = 43
//	append  qux += " world"
func (c *Change) String() string {
	if c == nil {
		return "<no change>"
	}
	var b strings.Builder
	for i, leaf := range c.Leaves() {
		if i > 0 {
			b.WriteByte('\n')
		}
		path := leaf.Path.String()
		if path == "" {
			path = "<root>"
		}
		switch leaf.Kind {
		case Append:
			fmt.Fprintf(&b, "append  %s += %#v", path, leaf.Value)
		default:
			fmt.Fprintf(&b, "replace %s = %#v", path, leaf.Value)
		}
	}
	return b.String()
}
