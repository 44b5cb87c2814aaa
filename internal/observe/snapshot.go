package observe

import (
	"errors"
	"reflect"

	"github.com/roach88/morph/internal/change"
)

// copier deep-copies values along their shapes. Pointers, maps and slices
// are memoized so aliasing and cycles in the source survive in the copy.
//
// A strict copier validates what shapes cannot: dynamic types behind
// interfaces and ObserveSnapshot results. A lenient copier degrades those
// cases to a shallow copy; it is used for change payloads, which must
// never fail.
//
// A strict copier also records the memory it reached through references,
// which Begin adds to the session's window.
type copier struct {
	strict  bool
	seen    map[copyKey]reflect.Value
	reached []span
}

type copyKey struct {
	typ reflect.Type
	ptr uintptr
	len int
}

func newCopier(strict bool) *copier {
	return &copier{strict: strict, seen: make(map[copyKey]reflect.Value)}
}

// reach records n bytes at p. Zero-sized values share one address and
// are skipped.
func (c *copier) reach(p, n uintptr) {
	if c.strict && n > 0 {
		c.reached = append(c.reached, span{p, p + n})
	}
}

// copy returns a deep copy of v, which must have type sh.typ.
func (c *copier) copy(sh *shape, v reflect.Value) (reflect.Value, error) {
	t := sh.typ
	switch sh.kind {
	case KindLeaf:
		if sh.opaque {
			return c.cloneOpaque(v), nil
		}
		return shallow(v), nil

	case KindString:
		return shallow(v), nil

	case KindPointer:
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		key := copyKey{typ: t, ptr: v.Pointer()}
		if out, ok := c.seen[key]; ok {
			return out, nil
		}
		out := reflect.New(t.Elem())
		c.seen[key] = out
		c.reach(v.Pointer(), t.Elem().Size())
		elem, err := c.copy(sh.elem, v.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Elem().Set(elem)
		return out, nil

	case KindInterface:
		out := reflect.New(t).Elem()
		if v.IsNil() {
			return out, nil
		}
		dyn := v.Elem()
		dsh, err := shapeOf(dyn.Type())
		if err != nil {
			if c.strict {
				// shapeOf reports root-first; the copy unwinds leaf-first.
				var oe *Error
				if errors.As(err, &oe) {
					oe.Path.Reverse()
				}
				return reflect.Value{}, err
			}
			out.Set(dyn)
			return out, nil
		}
		cp, err := c.copy(dsh, dyn)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Set(cp)
		return out, nil

	case KindSequence:
		return c.copySequence(sh, v)

	case KindStruct:
		out := reflect.New(t).Elem()
		out.Set(v)
		for _, f := range sh.fields {
			fv, err := c.copy(f.shape, v.FieldByIndex(f.index))
			if err != nil {
				return reflect.Value{}, withSegment(err, f.seg)
			}
			out.FieldByIndex(f.index).Set(fv)
		}
		return out, nil

	case KindMap:
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		key := copyKey{typ: t, ptr: v.Pointer()}
		if out, ok := c.seen[key]; ok {
			return out, nil
		}
		out := reflect.MakeMapWithSize(t, v.Len())
		c.seen[key] = out
		c.reach(v.Pointer(), 1)
		iter := v.MapRange()
		for iter.Next() {
			ev, err := c.copy(sh.elem, iter.Value())
			if err != nil {
				return reflect.Value{}, withSegment(err, change.Field(keyName(iter.Key())))
			}
			out.SetMapIndex(shallow(iter.Key()), ev)
		}
		return out, nil

	case KindCustom:
		obs := asObservable(v)
		if c.strict {
			for _, child := range obs.ObserveChildren() {
				if cv := reflect.ValueOf(child.Value); cv.Kind() == reflect.Pointer && !cv.IsNil() {
					c.reach(cv.Pointer(), cv.Type().Elem().Size())
				}
			}
		}
		snap := obs.ObserveSnapshot()
		sv := reflect.ValueOf(snap)
		if !sv.IsValid() || sv.Type() != t {
			if c.strict {
				return reflect.Value{}, newShapeError(t, "ObserveSnapshot returned %T, want %s", snap, t)
			}
			return shallow(v), nil
		}
		return shallow(sv), nil
	}

	return shallow(v), nil
}

func (c *copier) copySequence(sh *shape, v reflect.Value) (reflect.Value, error) {
	t := sh.typ
	var out reflect.Value
	if t.Kind() == reflect.Array {
		out = reflect.New(t).Elem()
	} else {
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		key := copyKey{typ: t, ptr: v.Pointer(), len: v.Len()}
		if cached, ok := c.seen[key]; ok {
			return cached, nil
		}
		out = reflect.MakeSlice(t, v.Len(), v.Len())
		c.seen[key] = out
		c.reach(v.Pointer(), uintptr(v.Len())*t.Elem().Size())
	}

	for i := 0; i < v.Len(); i++ {
		ev, err := c.copy(sh.elem, v.Index(i))
		if err != nil {
			return reflect.Value{}, withSegment(err, change.Index(i))
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

// cloneOpaque deep-copies the parts of an opaque value reflection can
// reach: containers, pointers and exported struct fields. Unexported state
// is shared with the source.
func (c *copier) cloneOpaque(v reflect.Value) reflect.Value {
	t := v.Type()
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.cloneOpaque(v.Index(i)))
		}
		return out

	case reflect.Array:
		out := reflect.New(t).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.cloneOpaque(v.Index(i)))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		key := copyKey{typ: t, ptr: v.Pointer()}
		if out, ok := c.seen[key]; ok {
			return out
		}
		out := reflect.MakeMapWithSize(t, v.Len())
		c.seen[key] = out
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(shallow(iter.Key()), c.cloneOpaque(iter.Value()))
		}
		return out

	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(t)
		}
		key := copyKey{typ: t, ptr: v.Pointer()}
		if out, ok := c.seen[key]; ok {
			return out
		}
		out := reflect.New(t.Elem())
		c.seen[key] = out
		out.Elem().Set(c.cloneOpaque(v.Elem()))
		return out

	case reflect.Interface:
		out := reflect.New(t).Elem()
		if !v.IsNil() {
			out.Set(c.cloneOpaque(v.Elem()))
		}
		return out

	case reflect.Struct:
		out := shallow(v)
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				out.Field(i).Set(c.cloneOpaque(v.Field(i)))
			}
		}
		return out
	}
	return shallow(v)
}

// shallow returns an addressable copy of v.
func shallow(v reflect.Value) reflect.Value {
	out := reflect.New(v.Type()).Elem()
	out.Set(v)
	return out
}

// payload returns an independent copy of v for use as a change payload.
func (c *copier) payload(sh *shape, v reflect.Value) any {
	out, err := c.copy(sh, v)
	if err != nil {
		return shallow(v).Interface()
	}
	return out.Interface()
}
