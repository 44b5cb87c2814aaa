package observe

import (
	"encoding"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/morph/internal/change"
)

// ShapeKind classifies how a Go type is walked during observation.
type ShapeKind int

const (
	KindLeaf ShapeKind = iota + 1
	KindString
	KindSequence
	KindStruct
	KindMap
	KindPointer
	KindInterface
	KindCustom
)

// String returns the kind name.
func (k ShapeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindStruct:
		return "struct"
	case KindMap:
		return "map"
	case KindPointer:
		return "pointer"
	case KindInterface:
		return "interface"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// shape is the resolved walking plan for one Go type.
type shape struct {
	kind ShapeKind
	typ  reflect.Type

	// opaque leaves compare with reflect.DeepEqual.
	opaque bool

	// elem is the element shape of sequences and maps and the target of
	// pointers.
	elem *shape

	// fields lists struct children in declaration order, with embedded
	// structs flattened.
	fields []field
}

type field struct {
	seg   change.Segment
	index []int
	shape *shape
}

// lookup returns the field addressed by name.
func (s *shape) lookup(name string) (field, bool) {
	for _, f := range s.fields {
		if f.seg.Name() == name {
			return f, true
		}
	}
	return field{}, false
}

var (
	shapes sync.Map // reflect.Type -> *shape

	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// ShapeOf reports how values of type t are walked, or an UnsupportedShape
// error when t cannot be observed.
func ShapeOf(t reflect.Type) (ShapeKind, error) {
	s, err := shapeOf(t)
	if err != nil {
		return 0, err
	}
	return s.kind, nil
}

// shapeOf resolves t once and caches the result. Shapes of recursive types
// are committed to the cache together, only when the whole graph resolved.
func shapeOf(t reflect.Type) (*shape, error) {
	if s, ok := shapes.Load(t); ok {
		return s.(*shape), nil
	}

	r := &resolver{pending: make(map[reflect.Type]*shape)}
	s, err := r.resolve(t)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) {
			oe.Path.Reverse()
		}
		return nil, err
	}
	for typ, ps := range r.pending {
		shapes.LoadOrStore(typ, ps)
	}
	return s, nil
}

type resolver struct {
	pending map[reflect.Type]*shape
}

func (r *resolver) resolve(t reflect.Type) (*shape, error) {
	if s, ok := shapes.Load(t); ok {
		return s.(*shape), nil
	}
	if s, ok := r.pending[t]; ok {
		return s, nil
	}

	s := &shape{typ: t}
	r.pending[t] = s
	if err := r.fill(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *resolver) fill(s *shape) error {
	t := s.typ
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if implements(t, observableType) {
			s.kind = KindCustom
			return nil
		}
		if isOpaqueType(t) {
			s.kind = KindLeaf
			s.opaque = true
			return nil
		}
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		s.kind = KindLeaf
		return nil

	case reflect.String:
		s.kind = KindString
		return nil

	case reflect.Slice, reflect.Array:
		s.kind = KindSequence
		elem, err := r.resolve(t.Elem())
		if err != nil {
			return err
		}
		s.elem = elem
		return nil

	case reflect.Map:
		if !supportedMapKey(t.Key()) {
			return newShapeError(t, "map key type %s is not supported", t.Key())
		}
		s.kind = KindMap
		elem, err := r.resolve(t.Elem())
		if err != nil {
			return err
		}
		s.elem = elem
		return nil

	case reflect.Pointer:
		s.kind = KindPointer
		elem, err := r.resolve(t.Elem())
		if err != nil {
			return err
		}
		s.elem = elem
		return nil

	case reflect.Interface:
		s.kind = KindInterface
		return nil

	case reflect.Struct:
		s.kind = KindStruct
		return r.fillStruct(s)

	default:
		return newShapeError(t, "%s values cannot be observed", t.Kind())
	}
}

// candidate is a struct field seen while flattening embedded structs.
type candidate struct {
	name   string
	index  []int
	depth  int
	tagged bool
	typ    reflect.Type
	opaque bool
}

func (r *resolver) fillStruct(s *shape) error {
	t := s.typ
	var cands []candidate
	exported := collectFields(t, nil, 0, &cands)
	if t.NumField() > 0 && !exported {
		return newShapeError(t, "struct has no exported fields and implements neither Observable nor a marshaler")
	}

	for _, c := range dominantFields(cands) {
		seg := change.Field(c.name)
		var fs *shape
		if c.opaque {
			fs = &shape{kind: KindLeaf, typ: c.typ, opaque: true}
		} else {
			var err error
			if fs, err = r.resolve(c.typ); err != nil {
				return withSegment(err, seg)
			}
		}
		s.fields = append(s.fields, field{seg: seg, index: c.index, shape: fs})
	}
	return nil
}

// collectFields appends every observable field of t, descending into
// untagged embedded structs. Reports whether t has any exported field.
func collectFields(t reflect.Type, prefix []int, depth int, out *[]candidate) bool {
	exported := false
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		name, opts, skip := fieldName(f)

		if f.Anonymous && !hasTagName(f) && f.Type.Kind() == reflect.Struct && !isLeafStruct(f.Type) {
			if collectFields(f.Type, index, depth+1, out) {
				exported = true
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		exported = true
		if skip {
			continue
		}
		*out = append(*out, candidate{
			name:   name,
			index:  index,
			depth:  depth,
			tagged: hasTagName(f),
			typ:    f.Type,
			opaque: opts.has("opaque"),
		})
	}
	return exported
}

// dominantFields applies Go's promotion rules: the shallowest field of a
// name wins, a tagged field beats an untagged one at the same depth, and
// remaining ties drop the name entirely.
func dominantFields(cands []candidate) []candidate {
	byName := make(map[string][]int)
	for i, c := range cands {
		byName[c.name] = append(byName[c.name], i)
	}

	out := make([]candidate, 0, len(cands))
	for i, c := range cands {
		idx := byName[c.name]
		if len(idx) == 1 {
			out = append(out, c)
			continue
		}
		winner := -1
		ambiguous := false
		for _, j := range idx {
			o := cands[j]
			switch {
			case winner == -1:
				winner = j
			case o.depth < cands[winner].depth,
				o.depth == cands[winner].depth && o.tagged && !cands[winner].tagged:
				winner, ambiguous = j, false
			case o.depth == cands[winner].depth && o.tagged == cands[winner].tagged:
				ambiguous = true
			}
		}
		if winner == i && !ambiguous {
			out = append(out, c)
		}
	}
	return out
}

type tagOptions []string

func (o tagOptions) has(opt string) bool {
	for _, x := range o {
		if x == opt {
			return true
		}
	}
	return false
}

// fieldName resolves the segment name of f: the morph tag, then the json
// tag, then the Go name. A "-" name skips the field.
func fieldName(f reflect.StructField) (name string, opts tagOptions, skip bool) {
	if tag, ok := f.Tag.Lookup("morph"); ok {
		parts := strings.Split(tag, ",")
		name, opts = parts[0], tagOptions(parts[1:])
		if name == "-" && len(opts) == 0 {
			return "", nil, true
		}
	}
	if name == "" {
		if tag, ok := f.Tag.Lookup("json"); ok {
			jn, _, _ := strings.Cut(tag, ",")
			if jn == "-" && tag == "-" {
				return "", nil, true
			}
			name = jn
		}
	}
	if name == "" {
		name = f.Name
	}
	return name, opts, false
}

func hasTagName(f reflect.StructField) bool {
	if tag, ok := f.Tag.Lookup("morph"); ok {
		if n, _, _ := strings.Cut(tag, ","); n != "" {
			return true
		}
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		if n, _, _ := strings.Cut(tag, ","); n != "" {
			return true
		}
	}
	return false
}

// isLeafStruct reports embedded struct types that must stay whole.
func isLeafStruct(t reflect.Type) bool {
	return implements(t, observableType) || isOpaqueType(t)
}

func isOpaqueType(t reflect.Type) bool {
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return true
	}
	return implements(t, opaqueType) ||
		implements(t, jsonMarshalerType) ||
		implements(t, textMarshalerType)
}

func implements(t, iface reflect.Type) bool {
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}

func supportedMapKey(k reflect.Type) bool {
	switch k.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return k.Implements(textMarshalerType)
}
