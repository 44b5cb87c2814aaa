package adapter

import (
	"fmt"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// Wire object keys.
const (
	keyPath    = "path"
	keyOp      = "op"
	keyValue   = "value"
	keyChanges = "changes"
)

// ChangeToIR converts c into its wire object:
//
//	{"path": ["bar", 0], "op": "replace", "value": ...}
//	{"path": [], "op": "batch", "changes": [...]}
//
// Name segments become strings, index segments integers. Payloads are
// encoded with EncodeIR. A nil change becomes null.
func ChangeToIR(c *change.Change) (ir.IRValue, error) {
	if c == nil {
		return ir.IRNull{}, nil
	}

	path := make(ir.IRArray, len(c.Path))
	for i, seg := range c.Path {
		if seg.IsIndex() {
			path[i] = ir.IRInt(seg.Index())
		} else {
			path[i] = ir.IRString(seg.Name())
		}
	}
	obj := ir.IRObject{
		keyPath: path,
		keyOp:   ir.IRString(c.Operation.Kind.String()),
	}

	switch c.Operation.Kind {
	case change.Replace, change.Append:
		v, err := EncodeIR(c.Operation.Value)
		if err != nil {
			return nil, fmt.Errorf("%s at %q: %w", c.Operation.Kind, c.Path.String(), err)
		}
		obj[keyValue] = v
	case change.Batch:
		children := make(ir.IRArray, len(c.Operation.Changes))
		for i, child := range c.Operation.Changes {
			v, err := ChangeToIR(child)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		obj[keyChanges] = children
	default:
		return nil, fmt.Errorf("unknown operation kind %d", int(c.Operation.Kind))
	}
	return obj, nil
}

// ChangeFromIR is the inverse of ChangeToIR. Payloads are ir.IRValue.
// Unknown keys, batches with fewer than two children and negative indices
// are rejected.
func ChangeFromIR(v ir.IRValue) (*change.Change, error) {
	switch v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("change must be an object, got %s", ir.TypeName(v))
	}
	for _, k := range obj.SortedKeys() {
		switch k {
		case keyPath, keyOp, keyValue, keyChanges:
		default:
			return nil, fmt.Errorf("unknown change field %q", k)
		}
	}

	path, err := pathFromIR(obj[keyPath])
	if err != nil {
		return nil, err
	}

	opName, ok := obj[keyOp].(ir.IRString)
	if !ok {
		return nil, fmt.Errorf("change at %q: op must be a string", path.String())
	}
	kind, err := change.ParseKind(string(opName))
	if err != nil {
		return nil, fmt.Errorf("change at %q: %w", path.String(), err)
	}

	c := &change.Change{Path: path, Operation: change.Operation{Kind: kind}}
	switch kind {
	case change.Batch:
		if _, has := obj[keyValue]; has {
			return nil, fmt.Errorf("batch at %q: unexpected value", path.String())
		}
		children, ok := obj[keyChanges].(ir.IRArray)
		if !ok || len(children) < 2 {
			return nil, fmt.Errorf("batch at %q: changes must hold at least two changes", path.String())
		}
		for i, raw := range children {
			child, err := ChangeFromIR(raw)
			if err != nil {
				return nil, fmt.Errorf("batch at %q: changes[%d]: %w", path.String(), i, err)
			}
			if child == nil {
				return nil, fmt.Errorf("batch at %q: changes[%d] is null", path.String(), i)
			}
			c.Operation.Changes = append(c.Operation.Changes, child)
		}
	default:
		if _, has := obj[keyChanges]; has {
			return nil, fmt.Errorf("%s at %q: unexpected changes", kind, path.String())
		}
		value, has := obj[keyValue]
		if !has {
			return nil, fmt.Errorf("%s at %q: missing value", kind, path.String())
		}
		c.Operation.Value = value
	}
	return c, nil
}

func pathFromIR(v ir.IRValue) (change.Path, error) {
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("path must be an array, got %s", ir.TypeName(v))
	}
	if len(arr) == 0 {
		return nil, nil
	}
	path := make(change.Path, len(arr))
	for i, raw := range arr {
		switch seg := raw.(type) {
		case ir.IRString:
			path[i] = change.Field(string(seg))
		case ir.IRInt:
			if seg < 0 {
				return nil, fmt.Errorf("path[%d]: negative index %d", i, seg)
			}
			path[i] = change.Index(int(seg))
		default:
			return nil, fmt.Errorf("path[%d]: must be a string or an integer, got %s", i, ir.TypeName(raw))
		}
	}
	return path, nil
}

// MarshalChange encodes c as canonical JSON.
func MarshalChange(c *change.Change) ([]byte, error) {
	v, err := ChangeToIR(c)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(v)
}

// UnmarshalChange decodes a change written by MarshalChange.
func UnmarshalChange(data []byte) (*change.Change, error) {
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	return ChangeFromIR(v)
}
