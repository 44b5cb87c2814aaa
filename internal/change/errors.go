package change

import (
	"errors"
	"fmt"
)

// ApplyErrorCode categorizes failures when applying a change to a value.
type ApplyErrorCode string

const (
	// ErrCodeIndex indicates the path does not exist in the target value.
	ErrCodeIndex ApplyErrorCode = "INDEX_ERROR"

	// ErrCodeOperation indicates the operation cannot be performed on the
	// value found at the path (e.g. appending a string onto an object).
	ErrCodeOperation ApplyErrorCode = "OPERATION_ERROR"
)

// ApplyError reports where an apply failed.
type ApplyError struct {
	Code ApplyErrorCode

	// Path is the prefix that was walked when the failure was detected.
	Path Path

	// Message adds optional context.
	Message string
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	msg := e.Message
	if msg == "" {
		switch e.Code {
		case ErrCodeIndex:
			msg = "path does not exist"
		case ErrCodeOperation:
			msg = "operation could not be performed"
		}
	}
	return fmt.Sprintf("%s: %s (path=%q)", e.Code, msg, e.Path.String())
}

// NewIndexError creates an ApplyError for a missing path.
func NewIndexError(path Path) *ApplyError {
	return &ApplyError{Code: ErrCodeIndex, Path: append(Path(nil), path...)}
}

// NewOperationError creates an ApplyError for an operation that does not
// fit the target value.
func NewOperationError(path Path, format string, args ...any) *ApplyError {
	return &ApplyError{
		Code:    ErrCodeOperation,
		Path:    append(Path(nil), path...),
		Message: fmt.Sprintf(format, args...),
	}
}

// IsIndexError returns true if err is an ApplyError with ErrCodeIndex.
// Uses errors.As to handle wrapped errors.
func IsIndexError(err error) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeIndex
	}
	return false
}

// IsOperationError returns true if err is an ApplyError with
// ErrCodeOperation.
func IsOperationError(err error) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeOperation
	}
	return false
}
