package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindEncoding     Kind = "encoding"
	KindArtifact     Kind = "artifact"
	KindInternal     Kind = "internal"
)

// Client reports whether the caller caused the failure and can fix it by
// changing the request.
func (k Kind) Client() bool {
	return k == KindInvalidInput || k == KindEncoding
}

// Error is a typed preparation failure.
type Error struct {
	Kind    Kind
	Message string
	// Columns names the columns involved, e.g. every missing input column.
	Columns []string
	// Row is the offending row, or -1 when the failure is not row specific.
	Row int
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if len(e.Columns) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Columns, ", "))
	}
	if e.Row >= 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a pipeline error that is not tied to a row.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Row: -1, Err: err}
}

func InvalidInput(message string, err error) *Error {
	return NewError(KindInvalidInput, message, err)
}

func EncodingError(message string, err error) *Error {
	return NewError(KindEncoding, message, err)
}

func ArtifactError(message string, err error) *Error {
	return NewError(KindArtifact, message, err)
}

func InternalError(message string, err error) *Error {
	return NewError(KindInternal, message, err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
