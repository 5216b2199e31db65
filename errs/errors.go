// Package errs defines the error taxonomy shared by the logsink packages.
// All sentinels are matched with errors.Is; RecordError adds the position
// of the failing record in a batch.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a nil or otherwise unusable argument passed
	// to a constructor or call, such as an incomplete category mapping
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTemplateSyntax indicates a malformed placeholder in a destination template
	// It is only returned when a template is compiled, never while resolving it
	ErrTemplateSyntax = errors.New("template syntax error")

	// ErrSerializationFailed indicates that a record could not be turned into a document
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrResolutionFailed indicates that no destination handle could be obtained for a record
	ErrResolutionFailed = errors.New("destination resolution failed")
)

// RecordError describes a failure tied to one record of a batch
type RecordError struct {
	// Index is the position of the record in the submitted batch
	Index int

	// Op names the step that failed, e.g. "serialize" or "resolve"
	Op string

	// Kind is one of the sentinel errors of this package
	Kind error

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface
func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record %d: %s: %v: %v", e.Index, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("record %d: %s: %v", e.Index, e.Op, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *RecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewRecordError creates a RecordError for the record at index
func NewRecordError(index int, op string, kind, err error) *RecordError {
	return &RecordError{
		Index: index,
		Op:    op,
		Kind:  kind,
		Err:   err,
	}
}

// InvalidArgument returns an error wrapping ErrInvalidArgument with a description
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
