// Package observe reports what a block of code changed in a nested Go
// value.
//
// A session snapshots the value when it opens and diffs the live value
// against the snapshot when it ends. Nothing is intercepted in between: the
// caller mutates the value through ordinary field and element access. The
// result is a single *change.Change, or nil when nothing changed.
//
//	type Bar struct{ Baz int }
//	type Foo struct {
//		Bar Bar    `json:"bar"`
//		Qux string `json:"qux"`
//	}
//
//	foo := Foo{Bar: Bar{Baz: 42}, Qux: "hello"}
//	c, err := observe.Observe(&foo, func(f *Foo) error {
//		f.Bar.Baz = 43
//		f.Qux += " world"
//		return nil
//	})
//	// c: batch { replace bar.Baz = 43, append qux += " world" }
//
// Types are walked by reflection: struct fields in declaration order,
// sequence elements in index order, map entries in sorted key order.
// Types that need a different walk implement Observable; types that must be
// compared whole implement Opaque or use the `morph:",opaque"` field tag.
//
// Classification rules:
//   - equal leaves produce nothing
//   - a string or slice that grew by a suffix produces Append(suffix)
//   - anything else at a leaf produces Replace(new)
//   - truncation, a nil-ness change, a deleted map key or a changed dynamic
//     type replaces the enclosing value
//   - several child changes become a Batch; a single one is returned as is
//
// At most one session may be open over a given memory range at a time.
// Sessions are not safe for concurrent use.
package observe
