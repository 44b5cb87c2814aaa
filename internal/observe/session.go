package observe

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/roach88/morph/internal/change"
)

type sessionState int

const (
	stateOpen sessionState = iota
	stateEnded
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateEnded:
		return "ended"
	default:
		return "closed"
	}
}

// Session is an exclusive observation window over one value.
//
// The caller mutates the value directly while the session is open; nothing
// is intercepted. End compares the live value with the snapshot taken by
// Begin. A Session is owned by one goroutine.
type Session struct {
	id       string
	root     reflect.Value // non-nil pointer
	shape    *shape
	snapshot reflect.Value
	state    sessionState
	cfg      *config
}

// Begin opens a session over the value root points to.
//
// Returns an UnsupportedShape error when root is not a non-nil pointer or
// holds a value that cannot be walked, and a ConcurrentObservation error
// when another open session covers the same or an overlapping value.
// Memory reachable through pointers, slices and maps counts as covered.
// Every successful Begin must be paired with End or Close.
func Begin(root any, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)

	rv := reflect.ValueOf(root)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, newShapeError(reflect.TypeOf(root), "observation root must be a non-nil pointer")
	}
	t := rv.Type().Elem()

	sh, err := shapeOf(t)
	if err != nil {
		return nil, err
	}

	id := cfg.ids.Generate()
	size := t.Size()
	if size == 0 {
		size = 1
	}
	if owner, ok := acquire(newWindow(id, span{rv.Pointer(), rv.Pointer() + size})); !ok {
		return nil, newConcurrentError(t, owner)
	}

	cp := newCopier(true)
	snap, err := cp.copy(sh, rv.Elem())
	if err != nil {
		release(id)
		var oe *Error
		if errors.As(err, &oe) {
			oe.Path.Reverse()
		}
		return nil, fmt.Errorf("snapshot %s: %w", t, err)
	}
	if owner, ok := extend(id, cp.reached); !ok {
		release(id)
		return nil, newConcurrentError(t, owner)
	}

	s := &Session{
		id:       id,
		root:     rv,
		shape:    sh,
		snapshot: snap,
		cfg:      cfg,
	}
	cfg.logger.Debug("observation session opened", "session_id", id, "type", t.String())
	cfg.hook.OnEvent(Event{
		Type:      EventSessionOpened,
		Timestamp: time.Now(),
		SessionID: id,
		RootType:  t.String(),
	})
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// End releases the window and returns the change tree, or nil when the
// value is unchanged. Calling End on a session that already ended or was
// closed panics.
func (s *Session) End() *change.Change {
	if s.state != stateOpen {
		panic(fmt.Sprintf("observe: End called on %s session %s", s.state, s.id))
	}
	s.state = stateEnded
	defer release(s.id)

	start := time.Now()
	c := change.ReversePaths(newDiffer().diff(s.shape, s.snapshot, s.root.Elem()))
	elapsed := time.Since(start)

	typeName := s.shape.typ.String()
	s.cfg.logger.Debug("observation session closed",
		"session_id", s.id,
		"type", typeName,
		"changed", c != nil,
		"leaves", c.Count(),
	)
	s.cfg.hook.OnEvent(Event{
		Type:      EventSessionClosed,
		Timestamp: time.Now(),
		SessionID: s.id,
		RootType:  typeName,
		Change:    c,
		Duration:  elapsed,
	})
	return c
}

// Close releases the window without diffing. It is a no-op after End or a
// previous Close, so it can always be deferred.
func (s *Session) Close() {
	if s.state != stateOpen {
		return
	}
	s.state = stateClosed
	release(s.id)

	typeName := s.shape.typ.String()
	s.cfg.logger.Debug("observation session aborted", "session_id", s.id, "type", typeName)
	s.cfg.hook.OnEvent(Event{
		Type:      EventSessionAborted,
		Timestamp: time.Now(),
		SessionID: s.id,
		RootType:  typeName,
	})
}

// Observe runs fn with exclusive access to root and returns what fn
// changed, or nil when nothing changed.
//
// The window is released on every exit path. An error returned by fn is
// returned unchanged with no tree; a panic in fn propagates after the
// window is released.
func Observe[T any](root *T, fn func(*T) error, opts ...Option) (*change.Change, error) {
	s, err := Begin(root, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := fn(root); err != nil {
		return nil, err
	}
	return s.End(), nil
}
