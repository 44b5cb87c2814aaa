package observe

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/morph/internal/change"
)

// ErrorCode categorizes observation errors.
type ErrorCode string

const (
	// ErrCodeConcurrentObservation indicates a session is already open over
	// the same or an overlapping value.
	ErrCodeConcurrentObservation ErrorCode = "CONCURRENT_OBSERVATION"

	// ErrCodeUnsupportedShape indicates a type whose children cannot be
	// enumerated (channels, funcs, opaque structs without a marshaler...).
	ErrCodeUnsupportedShape ErrorCode = "UNSUPPORTED_SHAPE"
)

// Error is returned by Begin and Observe. End never fails.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the offending sub-value, root-to-leaf. Empty for the
	// root and for concurrency errors.
	Path change.Path

	// Type is the offending Go type, when known.
	Type reflect.Type
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Type != nil && len(e.Path) > 0:
		return fmt.Sprintf("%s: %s (path=%s, type=%s)", e.Code, e.Message, e.Path, e.Type)
	case e.Type != nil:
		return fmt.Sprintf("%s: %s (type=%s)", e.Code, e.Message, e.Type)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsConcurrentObservation returns true if err reports an overlapping
// session. Uses errors.As to handle wrapped errors.
func IsConcurrentObservation(err error) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeConcurrentObservation
	}
	return false
}

// IsUnsupportedShape returns true if err reports a type that cannot be
// observed. Uses errors.As to handle wrapped errors.
func IsUnsupportedShape(err error) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeUnsupportedShape
	}
	return false
}

func newConcurrentError(t reflect.Type, owner string) *Error {
	return &Error{
		Code:    ErrCodeConcurrentObservation,
		Message: fmt.Sprintf("value is already under observation by session %s", owner),
		Type:    t,
	}
}

func newShapeError(t reflect.Type, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedShape,
		Message: fmt.Sprintf(format, args...),
		Type:    t,
	}
}

// withSegment records one more leaf-first path segment on a shape error
// while it unwinds.
func withSegment(err error, seg change.Segment) error {
	var oe *Error
	if errors.As(err, &oe) {
		oe.Path = append(oe.Path, seg)
	}
	return err
}
