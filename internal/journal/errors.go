package journal

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes journal errors.
type ErrorCode string

const (
	// ErrCodeBaseMismatch: the stream exists and replaying it does not
	// reproduce the root passed to Open.
	ErrCodeBaseMismatch ErrorCode = "BASE_MISMATCH"

	// ErrCodeDiverged: a change was observed but could not be journaled,
	// so the root and the stream no longer agree. The recorder refuses
	// further writes.
	ErrCodeDiverged ErrorCode = "DIVERGED"

	// ErrCodeStopped: the recorder's queue is closed.
	ErrCodeStopped ErrorCode = "STOPPED"
)

// Error is a journal error with the affected stream.
type Error struct {
	Code    ErrorCode
	Message string
	Stream  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (stream=%s)", e.Code, e.Message, e.Stream)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsBaseMismatch reports whether err is a BASE_MISMATCH error.
func IsBaseMismatch(err error) bool {
	return hasCode(err, ErrCodeBaseMismatch)
}

// IsDiverged reports whether err is a DIVERGED error.
func IsDiverged(err error) bool {
	return hasCode(err, ErrCodeDiverged)
}

// IsStopped reports whether err is a STOPPED error.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

func hasCode(err error, code ErrorCode) bool {
	var je *Error
	if errors.As(err, &je) {
		return je.Code == code
	}
	return false
}
