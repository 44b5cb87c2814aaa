package observe

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// span is a memory range [start, end).
type span struct {
	start, end uintptr
}

// window is the memory a session holds exclusively: the root value plus
// every pointee, slice backing array and map reachable from it. Spans are
// sorted and disjoint.
type window struct {
	owner string
	spans []span
}

func newWindow(owner string, spans ...span) window {
	return window{owner: owner, spans: normalize(spans)}
}

// normalize sorts spans and merges the ones that overlap or touch.
func normalize(spans []span) []span {
	out := slices.Clone(spans)
	slices.SortFunc(out, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	merged := out[:0]
	for _, s := range out {
		if n := len(merged); n > 0 && s.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, s.end)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func (w window) overlaps(o window) bool {
	i, j := 0, 0
	for i < len(w.spans) && j < len(o.spans) {
		a, b := w.spans[i], o.spans[j]
		if a.start < b.end && b.start < a.end {
			return true
		}
		if a.end <= b.end {
			i++
		} else {
			j++
		}
	}
	return false
}

// registry tracks the windows of all open sessions in the process.
var registry = struct {
	sync.Mutex
	open map[string]window
}{open: make(map[string]window)}

// acquire registers w, or returns the owner of an overlapping window.
func acquire(w window) (string, bool) {
	registry.Lock()
	defer registry.Unlock()

	if _, dup := registry.open[w.owner]; dup {
		panic(fmt.Sprintf("observe: duplicate session id %q", w.owner))
	}
	if owner, ok := conflict(w); !ok {
		return owner, false
	}
	registry.open[w.owner] = w
	return "", true
}

// extend adds spans to the window already held by owner, or returns the
// owner of another window they overlap. The held window is unchanged on
// conflict.
func extend(owner string, spans []span) (string, bool) {
	registry.Lock()
	defer registry.Unlock()

	held := registry.open[owner]
	w := newWindow(owner, append(slices.Clone(held.spans), spans...)...)
	if other, ok := conflict(w); !ok {
		return other, false
	}
	registry.open[owner] = w
	return "", true
}

// conflict returns the owner of an open window overlapping w, with ok
// false. The registry must be locked.
func conflict(w window) (owner string, ok bool) {
	for _, o := range registry.open {
		if o.owner != w.owner && o.overlaps(w) {
			return o.owner, false
		}
	}
	return "", true
}

func release(owner string) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.open, owner)
}

// openSessions returns the number of windows currently held.
func openSessions() int {
	registry.Lock()
	defer registry.Unlock()
	return len(registry.open)
}
