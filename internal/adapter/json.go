package adapter

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
	"github.com/roach88/morph/internal/observe"
)

// JSON encodes payloads as ir.IRValue trees.
type JSON struct{}

var _ Adapter = JSON{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(v any) (any, error) {
	return EncodeIR(v)
}

// EncodeIR converts v to an ir.IRValue laid out like its observation
// paths: object keys are the segment names (morph tag, then json name,
// then Go name) and every field is present whatever its omitempty option.
// Leaves go through encoding/json, so marshalers apply to them. IR values
// are cloned.
func EncodeIR(v any) (ir.IRValue, error) {
	if iv, ok := v.(ir.IRValue); ok {
		return ir.Clone(iv), nil
	}
	tree, err := observe.Plain(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	iv, err := fromPlain(tree)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return iv, nil
}

func fromPlain(v any) (ir.IRValue, error) {
	switch x := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case ir.IRValue:
		return ir.Clone(x), nil
	case string:
		return ir.IRString(x), nil
	case bool:
		return ir.IRBool(x), nil
	case []any:
		out := make(ir.IRArray, len(x))
		for i, e := range x {
			iv, err := fromPlain(e)
			if err != nil {
				return nil, err
			}
			out[i] = iv
		}
		return out, nil
	case map[string]any:
		out := make(ir.IRObject, len(x))
		for k, e := range x {
			iv, err := fromPlain(e)
			if err != nil {
				return nil, err
			}
			out[k] = iv
		}
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ir.UnmarshalIRValue(data)
}

// IRApplier implements change.Applier over ir.IRValue trees. Payloads that
// are not IR values yet are encoded with EncodeIR.
type IRApplier struct{}

var _ change.Applier = IRApplier{}

// Apply applies c to target. Objects and arrays are modified in place.
func (IRApplier) Apply(target any, c *change.Change) (any, error) {
	if c == nil {
		return target, nil
	}
	tv, ok := target.(ir.IRValue)
	if !ok {
		var err error
		if tv, err = EncodeIR(target); err != nil {
			return nil, err
		}
	}
	return applyIR(tv, c, nil)
}

// Concat joins two string or array fragments.
func (IRApplier) Concat(prefix, suffix any) (any, error) {
	p, err := EncodeIR(prefix)
	if err != nil {
		return nil, err
	}
	s, err := EncodeIR(suffix)
	if err != nil {
		return nil, err
	}
	return concatIR(p, s)
}

// ApplyIR applies c to v and returns the result.
func ApplyIR(v ir.IRValue, c *change.Change) (ir.IRValue, error) {
	if c == nil {
		return v, nil
	}
	return applyIR(v, c, nil)
}

func applyIR(v ir.IRValue, c *change.Change, walked change.Path) (ir.IRValue, error) {
	if len(c.Path) == 0 {
		switch c.Operation.Kind {
		case change.Replace:
			out, err := EncodeIR(c.Operation.Value)
			if err != nil {
				return nil, change.NewOperationError(walked, "%v", err)
			}
			return out, nil
		case change.Append:
			frag, err := EncodeIR(c.Operation.Value)
			if err != nil {
				return nil, change.NewOperationError(walked, "%v", err)
			}
			out, err := concatIR(v, frag)
			if err != nil {
				return nil, change.NewOperationError(walked, "%v", err)
			}
			return out, nil
		case change.Batch:
			for _, child := range c.Operation.Changes {
				var err error
				if v, err = applyIR(v, child, walked); err != nil {
					return nil, err
				}
			}
			return v, nil
		default:
			return nil, change.NewOperationError(walked, "unknown operation kind %d", int(c.Operation.Kind))
		}
	}

	seg := c.Path[0]
	rest := &change.Change{Path: c.Path[1:], Operation: c.Operation}
	here := append(append(change.Path(nil), walked...), seg)

	switch val := v.(type) {
	case ir.IRObject:
		if seg.IsIndex() {
			return nil, change.NewIndexError(here)
		}
		cur, ok := val[seg.Name()]
		if !ok {
			if len(rest.Path) > 0 || rest.Operation.Kind != change.Replace {
				return nil, change.NewIndexError(here)
			}
			cur = ir.IRNull{}
		}
		nv, err := applyIR(cur, rest, here)
		if err != nil {
			return nil, err
		}
		val[seg.Name()] = nv
		return val, nil

	case ir.IRArray:
		if !seg.IsIndex() || seg.Index() >= len(val) {
			return nil, change.NewIndexError(here)
		}
		nv, err := applyIR(val[seg.Index()], rest, here)
		if err != nil {
			return nil, err
		}
		val[seg.Index()] = nv
		return val, nil
	}
	return nil, change.NewIndexError(here)
}

func concatIR(prefix, frag ir.IRValue) (ir.IRValue, error) {
	switch p := prefix.(type) {
	case ir.IRString:
		if s, ok := frag.(ir.IRString); ok {
			return p + s, nil
		}
	case ir.IRArray:
		if s, ok := frag.(ir.IRArray); ok {
			out := make(ir.IRArray, 0, len(p)+len(s))
			out = append(out, p...)
			return append(out, s...), nil
		}
	}
	return nil, fmt.Errorf("cannot append %s to %s", ir.TypeName(frag), ir.TypeName(prefix))
}
