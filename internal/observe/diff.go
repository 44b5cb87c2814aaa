package observe

import (
	"cmp"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/morph/internal/change"
)

// differ compares a snapshot against the live value and assembles the
// change tree bottom-up.
//
// Paths are built leaf-first: every level appends its own segment to the
// paths its children returned. The caller reverses the finished tree once
// with change.ReversePaths.
type differ struct {
	payloads *copier

	// active holds the (old, cur) reference pairs currently on the walk
	// stack; meeting one again means the value is cyclic.
	active map[refKey]struct{}

	// diffed records reference pairs already walked, for aliased values
	// reachable from several paths.
	diffed map[refKey]visit
}

type refKey struct {
	typ            reflect.Type
	old, cur       uintptr
	oldLen, curLen int
}

type visit int

const (
	visitUnchanged visit = iota
	visitIdempotent
	visitAppends
)

func newDiffer() *differ {
	return &differ{
		payloads: newCopier(false),
		active:   make(map[refKey]struct{}),
		diffed:   make(map[refKey]visit),
	}
}

func (d *differ) replace(sh *shape, v reflect.Value) *change.Change {
	return change.NewReplace(nil, d.payloads.payload(sh, v))
}

// diff returns the change turning old into cur, or nil. Both values have
// type sh.typ.
func (d *differ) diff(sh *shape, old, cur reflect.Value) *change.Change {
	switch sh.kind {
	case KindLeaf:
		if leafEqual(sh, old, cur) {
			return nil
		}
		return d.replace(sh, cur)

	case KindString:
		return diffString(old, cur)

	case KindPointer:
		if old.IsNil() && cur.IsNil() {
			return nil
		}
		if old.IsNil() != cur.IsNil() {
			return d.replace(sh, cur)
		}
		return d.walkRef(sh.typ, old, cur,
			func() *change.Change { return d.diff(sh.elem, old.Elem(), cur.Elem()) },
			func() *change.Change { return d.replace(sh.elem, cur.Elem()) })

	case KindInterface:
		if old.IsNil() && cur.IsNil() {
			return nil
		}
		if old.IsNil() != cur.IsNil() || old.Elem().Type() != cur.Elem().Type() {
			return d.replace(sh, cur)
		}
		return d.diffDynamic(old.Elem(), cur.Elem())

	case KindSequence:
		return d.diffSequence(sh, old, cur)

	case KindStruct:
		var children []*change.Change
		for _, f := range sh.fields {
			if c := d.diff(f.shape, old.FieldByIndex(f.index), cur.FieldByIndex(f.index)); c != nil {
				c.Path = append(c.Path, f.seg)
				children = append(children, c)
			}
		}
		return change.Build(children)

	case KindMap:
		return d.diffMap(sh, old, cur)

	case KindCustom:
		return d.diffCustom(sh, old, cur)
	}
	return nil
}

// walkRef diffs a reference pair with walk the first time it is met. A
// pair already on the stack is a cycle and reports nothing. A pair met
// again through an alias repeats its Replace leaves, which are
// idempotent; when the first walk produced Appends the alias gets
// replace instead, so applying the tree never appends twice.
func (d *differ) walkRef(t reflect.Type, old, cur reflect.Value, walk, replace func() *change.Change) *change.Change {
	key := refKey{typ: t, old: old.Pointer(), cur: cur.Pointer()}
	if t.Kind() == reflect.Slice {
		key.oldLen, key.curLen = old.Len(), cur.Len()
	}
	if _, ok := d.active[key]; ok {
		return nil
	}
	if v, ok := d.diffed[key]; ok {
		switch v {
		case visitUnchanged:
			return nil
		case visitAppends:
			return replace()
		}
	}

	d.active[key] = struct{}{}
	c := walk()
	delete(d.active, key)

	v := visitUnchanged
	if c != nil {
		v = visitIdempotent
		for _, l := range c.Leaves() {
			if l.Kind == change.Append {
				v = visitAppends
				break
			}
		}
	}
	d.diffed[key] = v
	return c
}

func diffString(old, cur reflect.Value) *change.Change {
	o, n := old.String(), cur.String()
	if o == n {
		return nil
	}
	if strings.HasPrefix(n, o) {
		return change.NewAppend(nil, reflect.ValueOf(n[len(o):]).Convert(cur.Type()).Interface())
	}
	return change.NewReplace(nil, shallow(cur).Interface())
}

// diffSequence diffs the shared prefix element by element. Growth becomes
// an Append of the tail at the sequence's own path; truncation or a
// nil-ness change replaces the sequence.
func (d *differ) diffSequence(sh *shape, old, cur reflect.Value) *change.Change {
	isSlice := sh.typ.Kind() == reflect.Slice
	if isSlice {
		if old.IsNil() && cur.IsNil() {
			return nil
		}
		if old.IsNil() != cur.IsNil() || cur.Len() < old.Len() {
			return d.replace(sh, cur)
		}
		return d.walkRef(sh.typ, old, cur,
			func() *change.Change { return d.diffElements(sh, old, cur) },
			func() *change.Change { return d.replace(sh, cur) })
	}
	return d.diffElements(sh, old, cur)
}

func (d *differ) diffElements(sh *shape, old, cur reflect.Value) *change.Change {
	isSlice := sh.typ.Kind() == reflect.Slice
	var children []*change.Change
	for i := 0; i < old.Len(); i++ {
		if c := d.diff(sh.elem, old.Index(i), cur.Index(i)); c != nil {
			c.Path = append(c.Path, change.Index(i))
			children = append(children, c)
		}
	}

	if isSlice && cur.Len() > old.Len() {
		tail := change.NewAppend(nil, d.payloads.payload(sh, cur.Slice(old.Len(), cur.Len())))
		children = append([]*change.Change{tail}, children...)
	}
	return change.Build(children)
}

// diffMap reports added keys as Replace at the key's path. A deleted key
// cannot be expressed by the three operations and replaces the whole map.
func (d *differ) diffMap(sh *shape, old, cur reflect.Value) *change.Change {
	if old.IsNil() && cur.IsNil() {
		return nil
	}
	if old.IsNil() != cur.IsNil() {
		return d.replace(sh, cur)
	}
	return d.walkRef(sh.typ, old, cur,
		func() *change.Change { return d.diffEntries(sh, old, cur) },
		func() *change.Change { return d.replace(sh, cur) })
}

func (d *differ) diffEntries(sh *shape, old, cur reflect.Value) *change.Change {
	iter := old.MapRange()
	for iter.Next() {
		if !cur.MapIndex(iter.Key()).IsValid() {
			return d.replace(sh, cur)
		}
	}

	var children []*change.Change
	for _, k := range sortedKeys(cur) {
		nv := cur.MapIndex(k.value)
		var c *change.Change
		if ov := old.MapIndex(k.value); ov.IsValid() {
			c = d.diff(sh.elem, ov, nv)
		} else {
			c = d.replace(sh.elem, nv)
		}
		if c != nil {
			c.Path = append(c.Path, k.seg)
			children = append(children, c)
		}
	}
	return change.Build(children)
}

// diffCustom diffs the children an Observable enumerates. A different set
// of segments replaces the whole value.
func (d *differ) diffCustom(sh *shape, old, cur reflect.Value) *change.Change {
	oc := asObservable(old).ObserveChildren()
	nc := asObservable(cur).ObserveChildren()
	if len(oc) != len(nc) {
		return d.replace(sh, cur)
	}
	for i := range oc {
		if oc[i].Segment.Key() != nc[i].Segment.Key() {
			return d.replace(sh, cur)
		}
	}

	var children []*change.Change
	for i := range nc {
		ov, nv := reflect.ValueOf(oc[i].Value), reflect.ValueOf(nc[i].Value)
		var c *change.Change
		switch {
		case !ov.IsValid() && !nv.IsValid():
		case !nv.IsValid():
			c = change.NewReplace(nil, nil)
		case !ov.IsValid() || ov.Type() != nv.Type():
			c = d.replaceDynamic(nv)
		default:
			c = d.diffDynamic(ov, nv)
		}
		if c != nil {
			c.Path = append(c.Path, nc[i].Segment)
			children = append(children, c)
		}
	}
	return change.Build(children)
}

// diffDynamic diffs two values of the same dynamic type. Types that cannot
// be walked are compared whole.
func (d *differ) diffDynamic(old, cur reflect.Value) *change.Change {
	sh, err := shapeOf(cur.Type())
	if err != nil {
		if reflect.DeepEqual(old.Interface(), cur.Interface()) {
			return nil
		}
		return change.NewReplace(nil, cur.Interface())
	}
	return d.diff(sh, old, cur)
}

func (d *differ) replaceDynamic(v reflect.Value) *change.Change {
	sh, err := shapeOf(v.Type())
	if err != nil {
		return change.NewReplace(nil, v.Interface())
	}
	return d.replace(sh, v)
}

// leafEqual compares leaves. Floats compare bitwise so NaN equals itself.
func leafEqual(sh *shape, a, b reflect.Value) bool {
	if sh.opaque {
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return math.Float64bits(a.Float()) == math.Float64bits(b.Float())
	case reflect.Complex64, reflect.Complex128:
		ac, bc := a.Complex(), b.Complex()
		return math.Float64bits(real(ac)) == math.Float64bits(real(bc)) &&
			math.Float64bits(imag(ac)) == math.Float64bits(imag(bc))
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

type mapKey struct {
	value reflect.Value
	seg   change.Segment
}

// sortedKeys returns the map's keys in segment order: numeric order for
// integer keys, byte order of the name otherwise.
func sortedKeys(m reflect.Value) []mapKey {
	keys := make([]mapKey, 0, m.Len())
	for _, k := range m.MapKeys() {
		keys = append(keys, mapKey{value: k, seg: change.Field(keyName(k))})
	}
	slices.SortFunc(keys, func(a, b mapKey) int {
		switch a.value.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if a.value.Type().Implements(textMarshalerType) {
				break
			}
			return cmp.Compare(a.value.Int(), b.value.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if a.value.Type().Implements(textMarshalerType) {
				break
			}
			return cmp.Compare(a.value.Uint(), b.value.Uint())
		}
		return strings.Compare(a.seg.Name(), b.seg.Name())
	})
	return keys
}

// keyName renders a map key as a segment name, following encoding/json:
// string kinds first, then TextMarshaler, then integers.
func keyName(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return fmt.Sprintf("%v", k.Interface())
		}
		return string(text)
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return fmt.Sprintf("%v", k.Interface())
}
