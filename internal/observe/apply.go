package observe

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"

	"github.com/roach88/morph/internal/change"
)

// Apply applies c to the value root points to. root must be a non-nil
// pointer. A nil change is a no-op.
//
// Replace payloads are deep-copied into the target, so one change can be
// applied to many values. A missing map key is created only when the path
// ends at it with a Replace.
func Apply(root any, c *change.Change) error {
	if c == nil {
		return nil
	}
	rv := reflect.ValueOf(root)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("apply: target must be a non-nil pointer, got %T", root)
	}
	return applyValue(rv.Elem(), c, nil)
}

// GoApplier implements change.Applier over plain Go values.
type GoApplier struct{}

var _ change.Applier = GoApplier{}

// Apply applies c to a shallow copy of target and returns the result.
// Containers reachable from target may be modified in place.
func (GoApplier) Apply(target any, c *change.Change) (any, error) {
	if target == nil {
		if len(c.Path) == 0 && c.Operation.Kind == change.Replace {
			return c.Operation.Value, nil
		}
		return nil, change.NewIndexError(c.Path[:min(1, len(c.Path))])
	}
	v := shallow(reflect.ValueOf(target))
	if err := applyValue(v, c, nil); err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Concat joins two Append fragments.
func (GoApplier) Concat(prefix, suffix any) (any, error) {
	if prefix == nil {
		return suffix, nil
	}
	out, err := concat(reflect.ValueOf(prefix), suffix)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// applyValue applies c at v, which must be settable. walked is the path
// consumed so far, for error reports.
func applyValue(v reflect.Value, c *change.Change, walked change.Path) error {
	if len(c.Path) == 0 {
		switch c.Operation.Kind {
		case change.Replace:
			if err := assign(v, c.Operation.Value); err != nil {
				return change.NewOperationError(walked, "%v", err)
			}
			return nil
		case change.Append:
			return appendAt(v, c.Operation.Value, walked)
		case change.Batch:
			for _, child := range c.Operation.Changes {
				if err := applyValue(v, child, walked); err != nil {
					return err
				}
			}
			return nil
		default:
			return change.NewOperationError(walked, "unknown operation kind %d", int(c.Operation.Kind))
		}
	}

	seg := c.Path[0]
	rest := &change.Change{Path: c.Path[1:], Operation: c.Operation}
	here := append(append(change.Path(nil), walked...), seg)

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return change.NewIndexError(here)
		}
		return applyValue(v.Elem(), c, walked)

	case reflect.Interface:
		if v.IsNil() {
			return change.NewIndexError(here)
		}
		tmp := shallow(v.Elem())
		if err := applyValue(tmp, c, walked); err != nil {
			return err
		}
		v.Set(tmp)
		return nil
	}

	sh, err := shapeOf(v.Type())
	if err != nil {
		return change.NewIndexError(here)
	}

	switch sh.kind {
	case KindStruct:
		if seg.IsIndex() {
			return change.NewIndexError(here)
		}
		f, ok := sh.lookup(seg.Name())
		if !ok {
			return change.NewIndexError(here)
		}
		return applyValue(v.FieldByIndex(f.index), rest, here)

	case KindSequence:
		if !seg.IsIndex() || seg.Index() >= v.Len() {
			return change.NewIndexError(here)
		}
		return applyValue(v.Index(seg.Index()), rest, here)

	case KindMap:
		return applyMapEntry(v, seg, rest, here)

	case KindCustom:
		return applyCustomChild(v, seg, rest, here)
	}
	return change.NewIndexError(here)
}

func applyMapEntry(v reflect.Value, seg change.Segment, rest *change.Change, here change.Path) error {
	if seg.IsIndex() {
		return change.NewIndexError(here)
	}
	key, err := mapKeyFor(v.Type().Key(), seg.Name())
	if err != nil {
		return change.NewIndexError(here)
	}

	creating := len(rest.Path) == 0 && rest.Operation.Kind == change.Replace
	cur := reflect.Value{}
	if !v.IsNil() {
		cur = v.MapIndex(key)
	}
	if !cur.IsValid() && !creating {
		return change.NewIndexError(here)
	}
	if v.IsNil() {
		v.Set(reflect.MakeMap(v.Type()))
	}

	tmp := reflect.New(v.Type().Elem()).Elem()
	if cur.IsValid() {
		tmp.Set(cur)
	}
	if err := applyValue(tmp, rest, here); err != nil {
		return err
	}
	v.SetMapIndex(key, tmp)
	return nil
}

// applyCustomChild applies beneath an Observable. Only children exposed as
// pointers can be modified in place.
func applyCustomChild(v reflect.Value, seg change.Segment, rest *change.Change, here change.Path) error {
	for _, child := range asObservable(v).ObserveChildren() {
		if child.Segment.Key() != seg.Key() {
			continue
		}
		cv := reflect.ValueOf(child.Value)
		if !cv.IsValid() || cv.Kind() != reflect.Pointer || cv.IsNil() {
			return change.NewOperationError(here, "child of %s is not addressable", v.Type())
		}
		return applyValue(cv.Elem(), rest, here)
	}
	return change.NewIndexError(here)
}

// assign stores payload into v, converting between named and underlying
// types and dereferencing through pointers where needed.
func assign(v reflect.Value, payload any) error {
	if payload == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	pv := reflect.ValueOf(payload)
	if sh, err := shapeOf(pv.Type()); err == nil {
		pv = reflect.ValueOf(newCopier(false).payload(sh, pv))
	}

	for {
		switch {
		case pv.Type().AssignableTo(v.Type()):
			v.Set(pv)
			return nil
		case v.Kind() == reflect.Pointer:
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		case pv.Type().ConvertibleTo(v.Type()) && kindClass(pv.Kind()) == kindClass(v.Kind()):
			v.Set(pv.Convert(v.Type()))
			return nil
		default:
			return fmt.Errorf("cannot assign %s to %s", pv.Type(), v.Type())
		}
	}
}

// kindClass groups kinds that convert into each other without changing
// meaning: numbers with numbers, strings with strings.
func kindClass(k reflect.Kind) reflect.Kind {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return reflect.Float64
	}
	return k
}

func appendAt(v reflect.Value, fragment any, walked change.Path) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return change.NewOperationError(walked, "cannot append to nil %s", v.Type())
		}
		v = v.Elem()
	}
	cur := v
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return change.NewOperationError(walked, "cannot append to nil %s", v.Type())
		}
		cur = v.Elem()
	}
	out, err := concat(cur, fragment)
	if err != nil {
		return change.NewOperationError(walked, "%v", err)
	}
	v.Set(out)
	return nil
}

// concat returns prefix followed by fragment. Strings concatenate; slices
// append the fragment's elements, converting them to the element type.
func concat(prefix reflect.Value, fragment any) (reflect.Value, error) {
	fv := reflect.ValueOf(fragment)
	if !fv.IsValid() {
		return reflect.Value{}, fmt.Errorf("cannot append nil to %s", prefix.Type())
	}

	switch prefix.Kind() {
	case reflect.String:
		if fv.Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("cannot append %s to %s", fv.Type(), prefix.Type())
		}
		return reflect.ValueOf(prefix.String() + fv.String()).Convert(prefix.Type()), nil

	case reflect.Slice:
		if fv.Kind() != reflect.Slice && fv.Kind() != reflect.Array {
			return reflect.Value{}, fmt.Errorf("cannot append %s to %s", fv.Type(), prefix.Type())
		}
		elemType := prefix.Type().Elem()
		out := reflect.MakeSlice(prefix.Type(), prefix.Len(), prefix.Len()+fv.Len())
		reflect.Copy(out, prefix)
		for i := 0; i < fv.Len(); i++ {
			elem := reflect.New(elemType).Elem()
			var ev any
			if fv.Index(i).CanInterface() {
				ev = fv.Index(i).Interface()
			}
			if err := assign(elem, ev); err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out = reflect.Append(out, elem)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot append to %s", prefix.Type())
}

// mapKeyFor converts a segment name back into a map key of type t, the
// inverse of keyName.
func mapKeyFor(t reflect.Type, name string) (reflect.Value, error) {
	if t.Kind() == reflect.String {
		return reflect.ValueOf(name).Convert(t), nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		k := reflect.New(t)
		if err := k.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(name)); err != nil {
			return reflect.Value{}, err
		}
		return k.Elem(), nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(name, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(name, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported map key type %s", t)
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
