package observe

import (
	"fmt"
	"reflect"
	"strconv"
)

// Plain converts v to a tree that mirrors its observation paths: structs
// and maps become map[string]any keyed by segment name, sequences and
// index-addressed Observables become []any, strings become string, and
// pointers and interfaces are followed. Every field is present, so
// omitempty has no effect. Other leaves, opaque ones included, are
// returned as they are for the caller to encode.
func Plain(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	p := &plainer{active: make(map[plainRef]struct{})}
	return p.value(reflect.ValueOf(v))
}

type plainRef struct {
	typ reflect.Type
	ptr uintptr
}

type plainer struct {
	active map[plainRef]struct{}
}

func (p *plainer) value(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	sh, err := shapeOf(v.Type())
	if err != nil {
		return v.Interface(), nil
	}
	return p.shaped(sh, v)
}

func (p *plainer) shaped(sh *shape, v reflect.Value) (any, error) {
	switch sh.kind {
	case KindString:
		return v.String(), nil

	case KindPointer:
		if v.IsNil() {
			return nil, nil
		}
		return p.ref(v, func() (any, error) { return p.shaped(sh.elem, v.Elem()) })

	case KindInterface:
		if v.IsNil() {
			return nil, nil
		}
		return p.value(v.Elem())

	case KindStruct:
		out := make(map[string]any, len(sh.fields))
		for _, f := range sh.fields {
			fv, err := v.FieldByIndexErr(f.index)
			if err != nil {
				// nil embedded pointer
				out[f.seg.Name()] = nil
				continue
			}
			pv, err := p.shaped(f.shape, fv)
			if err != nil {
				return nil, err
			}
			out[f.seg.Name()] = pv
		}
		return out, nil

	case KindMap:
		if v.IsNil() {
			return nil, nil
		}
		return p.ref(v, func() (any, error) {
			out := make(map[string]any, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				pv, err := p.shaped(sh.elem, iter.Value())
				if err != nil {
					return nil, err
				}
				out[keyName(iter.Key())] = pv
			}
			return out, nil
		})

	case KindSequence:
		if v.Kind() == reflect.Slice {
			if v.IsNil() {
				return nil, nil
			}
			return p.ref(v, func() (any, error) { return p.elements(sh, v) })
		}
		return p.elements(sh, v)

	case KindCustom:
		return p.custom(asObservable(v))
	}
	return v.Interface(), nil
}

func (p *plainer) elements(sh *shape, v reflect.Value) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		pv, err := p.shaped(sh.elem, v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = pv
	}
	return out, nil
}

// custom renders an Observable from its children: a list when they are
// addressed by consecutive indexes from 0, an object otherwise.
func (p *plainer) custom(obs Observable) (any, error) {
	children := obs.ObserveChildren()
	values := make([]any, len(children))
	list := true
	for i, child := range children {
		cv := reflect.ValueOf(child.Value)
		if cv.Kind() == reflect.Pointer && !cv.IsNil() {
			cv = cv.Elem()
		}
		pv, err := p.value(cv)
		if err != nil {
			return nil, err
		}
		values[i] = pv
		if !child.Segment.IsIndex() || child.Segment.Index() != i {
			list = false
		}
	}
	if list {
		return values, nil
	}
	out := make(map[string]any, len(children))
	for i, child := range children {
		name := child.Segment.Name()
		if child.Segment.IsIndex() {
			name = strconv.Itoa(child.Segment.Index())
		}
		out[name] = values[i]
	}
	return out, nil
}

// ref guards a reference against cycles, which have no plain form.
func (p *plainer) ref(v reflect.Value, walk func() (any, error)) (any, error) {
	key := plainRef{typ: v.Type(), ptr: v.Pointer()}
	if _, ok := p.active[key]; ok {
		return nil, fmt.Errorf("%s: cyclic value", v.Type())
	}
	p.active[key] = struct{}{}
	defer delete(p.active, key)
	return walk()
}
