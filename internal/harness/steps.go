package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// normalize converts a decoded YAML value into the dynamic form the
// harness mutates: nil, bool, string, int64, float64, []any and
// map[string]any. The result shares nothing with v.
func normalize(v any) (any, error) {
	iv, err := ir.FromAny(v)
	if err != nil {
		return nil, err
	}
	return ir.ToAny(iv), nil
}

// applyStep performs one step on *root.
func applyStep(root *any, step Step) error {
	path, err := change.ParsePath(step.Path)
	if err != nil {
		return err
	}
	value, err := normalize(step.Value)
	if err != nil {
		return fmt.Errorf("%s %s: %w", step.Op, step.Path, err)
	}

	var fn func(any) (any, error)
	switch step.Op {
	case OpSet:
		fn = func(any) (any, error) { return value, nil }
	case OpAppend:
		fn = func(cur any) (any, error) { return appendTo(cur, value) }
	case OpTruncate:
		fn = func(cur any) (any, error) { return truncate(cur, *step.Len) }
	case OpDelete:
		if len(path) == 0 {
			return errors.New("delete requires a path")
		}
		parent, last := path[:len(path)-1], path[len(path)-1]
		next, err := update(*root, parent, func(cur any) (any, error) { return remove(cur, last) })
		if err != nil {
			return fmt.Errorf("delete %s: %w", step.Path, err)
		}
		*root = next
		return nil
	default:
		return fmt.Errorf("unknown step op %q", step.Op)
	}

	next, err := update(*root, path, fn)
	if err != nil {
		return fmt.Errorf("%s %s: %w", step.Op, step.Path, err)
	}
	*root = next
	return nil
}

// update replaces the value at path with fn's result. Maps and slices on
// the way are modified in place; a missing final map key is created.
func update(cur any, path change.Path, fn func(any) (any, error)) (any, error) {
	if len(path) == 0 {
		return fn(cur)
	}
	seg, rest := path[0], path[1:]

	switch node := cur.(type) {
	case map[string]any:
		if seg.IsIndex() {
			return nil, fmt.Errorf("index %d into object", seg.Index())
		}
		child, ok := node[seg.Name()]
		if !ok && len(rest) > 0 {
			return nil, fmt.Errorf("no key %q", seg.Name())
		}
		next, err := update(child, rest, fn)
		if err != nil {
			return nil, err
		}
		node[seg.Name()] = next
		return node, nil

	case []any:
		if !seg.IsIndex() {
			return nil, fmt.Errorf("field %q into array", seg.Name())
		}
		if seg.Index() >= len(node) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", seg.Index(), len(node))
		}
		next, err := update(node[seg.Index()], rest, fn)
		if err != nil {
			return nil, err
		}
		node[seg.Index()] = next
		return node, nil

	default:
		return nil, fmt.Errorf("cannot descend into %T at %s", cur, seg)
	}
}

func appendTo(cur, value any) (any, error) {
	switch c := cur.(type) {
	case string:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to a string", value)
		}
		return c + s, nil
	case []any:
		if more, ok := value.([]any); ok {
			return append(c, more...), nil
		}
		return append(c, value), nil
	default:
		return nil, fmt.Errorf("cannot append to %T", cur)
	}
}

func truncate(cur any, n int) (any, error) {
	switch c := cur.(type) {
	case string:
		if n > len(c) {
			return nil, fmt.Errorf("len %d exceeds %d", n, len(c))
		}
		return c[:n], nil
	case []any:
		if n > len(c) {
			return nil, fmt.Errorf("len %d exceeds %d", n, len(c))
		}
		return c[:n:n], nil
	default:
		return nil, fmt.Errorf("cannot truncate %T", cur)
	}
}

func remove(cur any, seg change.Segment) (any, error) {
	switch node := cur.(type) {
	case map[string]any:
		if seg.IsIndex() {
			return nil, fmt.Errorf("index %d into object", seg.Index())
		}
		if _, ok := node[seg.Name()]; !ok {
			return nil, fmt.Errorf("no key %q", seg.Name())
		}
		delete(node, seg.Name())
		return node, nil
	case []any:
		if !seg.IsIndex() {
			return nil, fmt.Errorf("field %q into array", seg.Name())
		}
		i := seg.Index()
		if i >= len(node) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", i, len(node))
		}
		out := make([]any, 0, len(node)-1)
		out = append(out, node[:i]...)
		return append(out, node[i+1:]...), nil
	default:
		return nil, fmt.Errorf("cannot delete from %T", cur)
	}
}
