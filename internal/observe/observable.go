package observe

import (
	"reflect"

	"github.com/roach88/morph/internal/change"
)

// Observable is implemented by types that enumerate their own children
// instead of being walked by reflection: types whose state lives in
// unexported fields, or whose addressable structure differs from their
// memory layout.
type Observable interface {
	// ObserveChildren returns the addressable children in a stable order.
	// A child whose Value is a pointer can be modified in place by Apply.
	ObserveChildren() []Child

	// ObserveSnapshot returns an independent deep copy of the receiver.
	// It must return the receiver's own type (T, not *T, when the method
	// set belongs to T).
	ObserveSnapshot() any
}

// Child is one addressable sub-location of an Observable.
type Child struct {
	Segment change.Segment
	Value   any
}

// Opaque marks a type as a leaf: it is compared whole and only ever
// produces Replace.
type Opaque interface {
	ObserveOpaque()
}

var (
	observableType = reflect.TypeFor[Observable]()
	opaqueType     = reflect.TypeFor[Opaque]()
)

// asObservable returns the Observable view of v, taking the address (or an
// addressable copy) when the methods have pointer receivers.
func asObservable(v reflect.Value) Observable {
	if v.Type().Implements(observableType) {
		return v.Interface().(Observable)
	}
	if !v.CanAddr() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	return v.Addr().Interface().(Observable)
}
