package change

import (
	"errors"
	"fmt"
)

// Applier applies changes to values held in one representation (Go
// values, encoded JSON values, YAML nodes...).
type Applier interface {
	// Apply applies c to target and returns the updated value. The target
	// may be modified in place; callers must use the returned value.
	Apply(target any, c *Change) (any, error)

	// Concat joins two Append fragments into one.
	Concat(prefix, suffix any) (any, error)
}

// Tree squashes a sequence of changes, produced by successive sessions
// over the same value, into one compacted change.
//
// Rules:
//   - a Replace discards everything previously recorded beneath its path
//   - a change beneath an existing Replace is applied into that payload
//   - consecutive Appends at one path concatenate their fragments
//
// Tree takes ownership of loaded changes: Replace payloads may be
// modified in place when later changes are folded into them.
type Tree struct {
	applier Applier
	root    *node
}

type node struct {
	op       *Operation
	children map[string]*node
	order    []Segment
}

// NewTree creates an empty tree that folds payloads with the given
// Applier.
func NewTree(a Applier) *Tree {
	return &Tree{applier: a, root: &node{}}
}

// Load folds c into the tree.
func (t *Tree) Load(c *Change) error {
	if c == nil {
		return nil
	}
	return t.load(t.root, c, nil)
}

// Dump returns the compacted change and resets the tree.
// Returns nil when nothing was loaded.
func (t *Tree) Dump() *Change {
	c := t.root.dump()
	t.root = &node{}
	return c
}

func (t *Tree) load(n *node, c *Change, walked Path) error {
	rest := c.Path
	for {
		if n.op != nil && n.op.Kind == Replace {
			v, err := t.applier.Apply(n.op.Value, &Change{Path: rest, Operation: c.Operation})
			if err != nil {
				return prefixApplyError(err, walked)
			}
			n.op.Value = v
			return nil
		}
		if len(rest) == 0 {
			break
		}
		seg := rest[0]
		rest = rest[1:]
		walked = append(walked, seg)
		n = n.child(seg)
	}

	switch c.Operation.Kind {
	case Replace:
		op := c.Operation
		n.op = &op
		n.children = nil
		n.order = nil
	case Append:
		if n.op != nil && n.op.Kind == Append {
			v, err := t.applier.Concat(n.op.Value, c.Operation.Value)
			if err != nil {
				return &ApplyError{
					Code:    ErrCodeOperation,
					Path:    append(Path(nil), walked...),
					Message: fmt.Sprintf("cannot merge appends: %v", err),
				}
			}
			n.op.Value = v
			return nil
		}
		op := c.Operation
		n.op = &op
	case Batch:
		for _, child := range c.Operation.Changes {
			if err := t.load(n, child, walked); err != nil {
				return err
			}
		}
	default:
		return NewOperationError(walked, "unknown operation kind %d", int(c.Operation.Kind))
	}
	return nil
}

func (n *node) child(seg Segment) *node {
	key := seg.Key()
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c, ok := n.children[key]
	if !ok {
		c = &node{}
		n.children[key] = c
		n.order = append(n.order, seg)
	}
	return c
}

// dump emits the node's own operation first, then children in the order
// they were first seen.
func (n *node) dump() *Change {
	var changes []*Change
	if n.op != nil {
		changes = append(changes, &Change{Operation: *n.op})
	}
	for _, seg := range n.order {
		c := n.children[seg.Key()].dump()
		if c == nil {
			continue
		}
		c.Path = append(Path{seg}, c.Path...)
		changes = append(changes, c)
	}
	return Build(changes)
}

// Squash folds changes in order and returns the compacted result.
func Squash(a Applier, changes ...*Change) (*Change, error) {
	t := NewTree(a)
	for i, c := range changes {
		if err := t.Load(c); err != nil {
			return nil, fmt.Errorf("squash change %d: %w", i, err)
		}
	}
	return t.Dump(), nil
}

func prefixApplyError(err error, walked Path) error {
	var ae *ApplyError
	if errors.As(err, &ae) {
		ae.Path = append(append(Path(nil), walked...), ae.Path...)
		return ae
	}
	return fmt.Errorf("apply at %q: %w", walked.String(), err)
}
