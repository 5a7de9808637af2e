// Package errors defines the structured error used by every clifile package.
//
// An Error carries the decoding phase it was raised in, a coarse kind that
// callers match on, and the byte offset of the offending data when known.
package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which decoder raised the error.
type Phase string

const (
	PhasePE        Phase = "pe"
	PhaseMetadata  Phase = "metadata"
	PhaseHeap      Phase = "heap"
	PhaseTable     Phase = "table"
	PhaseSignature Phase = "signature"
	PhaseBody      Phase = "body"
	PhaseIL        Phase = "il"
	PhaseStack     Phase = "stack"
)

// Kind categorizes the error.
type Kind string

const (
	KindFormat       Kind = "format"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindUnsupported  Kind = "unsupported"
	KindStackShape   Kind = "stack_shape"
	KindInvalidInput Kind = "invalid_input"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrFormat       = &Error{Kind: KindFormat}
	ErrBounds       = &Error{Kind: KindOutOfBounds}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrStackShape   = &Error{Kind: KindStackShape}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// NoOffset marks an error not tied to a byte position.
const NoOffset int64 = -1

// Error is the structured error type used throughout clifile.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Offset int64
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Offset >= 0 && e.Phase != "" {
		fmt.Fprintf(&b, " at 0x%x", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Phase == "" || t.Phase == e.Phase
}

func newError(phase Phase, kind Kind, offset int64, format string, args []any) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Phase: phase, Kind: kind, Offset: offset, Detail: detail}
}

// Format reports structurally invalid input: bad magic, unknown tags,
// invalid opcodes.
func Format(phase Phase, offset int64, format string, args ...any) *Error {
	return newError(phase, KindFormat, offset, format, args)
}

// Bounds reports an index or range outside its owning region, table or heap.
func Bounds(phase Phase, offset int64, format string, args ...any) *Error {
	return newError(phase, KindOutOfBounds, offset, format, args)
}

// Unsupported reports a construct that is recognized but not handled.
func Unsupported(phase Phase, offset int64, format string, args ...any) *Error {
	return newError(phase, KindUnsupported, offset, format, args)
}

// StackShape reports an abstract stack invariant violation at an IL offset.
func StackShape(offset int64, format string, args ...any) *Error {
	return newError(PhaseStack, KindStackShape, offset, format, args)
}

// InvalidInput reports API misuse by the caller.
func InvalidInput(phase Phase, format string, args ...any) *Error {
	return newError(phase, KindInvalidInput, NoOffset, format, args)
}

// Wrap attaches a phase, kind and offset to an underlying error.
func Wrap(phase Phase, kind Kind, offset int64, cause error, format string, args ...any) *Error {
	e := newError(phase, kind, offset, format, args)
	e.Cause = cause
	return e
}
