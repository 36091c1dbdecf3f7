// Package errs defines the structured error type shared by the array core.
//
// Every failure carries a Kind (what went wrong) and, when it comes from the
// device, the Phase it happened in together with the raw device status code
// and the diagnostic string the runtime reported.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names the step of an operation that failed.
type Phase string

const (
	PhaseShape        Phase = "shape"        // output shape resolution and allocation
	PhaseSizeQuery    Phase = "size_query"   // operator workspace size query
	PhaseWorkspace    Phase = "workspace"    // scratch memory acquisition
	PhaseExecute      Phase = "execute"      // operator launch
	PhaseSynchronize  Phase = "synchronize"  // device synchronization
	PhaseRegistration Phase = "registration" // extension type installation
	PhaseTransfer     Phase = "transfer"     // host/device copies
	PhaseCast         Phase = "cast"         // host-side dtype conversion
)

// Kind categorizes the error.
type Kind string

const (
	KindAllocationFailure        Kind = "allocation_failure"
	KindOperatorQueryFailure     Kind = "operator_query_failure"
	KindOperatorExecutionFailure Kind = "operator_execution_failure"
	KindSynchronizationFailure   Kind = "synchronization_failure"
	KindBroadcastIncompatible    Kind = "broadcast_incompatible"
	KindTypeRegistrationConflict Kind = "type_registration_conflict"
	KindUnsupportedDtype         Kind = "unsupported_dtype"
	KindShapeOverflow            Kind = "shape_overflow"
	KindInvalidShape             Kind = "invalid_shape"
	KindReleased                 Kind = "released"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrAllocationFailure        = &Error{Kind: KindAllocationFailure}
	ErrOperatorQueryFailure     = &Error{Kind: KindOperatorQueryFailure}
	ErrOperatorExecutionFailure = &Error{Kind: KindOperatorExecutionFailure}
	ErrSynchronizationFailure   = &Error{Kind: KindSynchronizationFailure}
	ErrBroadcastIncompatible    = &Error{Kind: KindBroadcastIncompatible}
	ErrTypeRegistrationConflict = &Error{Kind: KindTypeRegistrationConflict}
	ErrUnsupportedDtype         = &Error{Kind: KindUnsupportedDtype}
	ErrShapeOverflow            = &Error{Kind: KindShapeOverflow}
	ErrInvalidShape             = &Error{Kind: KindInvalidShape}
	ErrReleased                 = &Error{Kind: KindReleased}
)

// Error is the structured error type used throughout the module.
type Error struct {
	Cause  error
	Op     string
	Phase  Phase
	Kind   Kind
	Detail string
	// Status is the device status code, zero when the failure did not come
	// from the device.
	Status int32
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
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

// Is reports whether target matches this error. A target without a Phase
// matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// Op sets the failing operation name.
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Phase sets the phase.
func (b *Builder) Phase(p Phase) *Builder {
	b.err.Phase = p
	return b
}

// Status sets the device status code.
func (b *Builder) Status(code int32) *Builder {
	b.err.Status = code
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// InvalidShape reports a negative dimension.
func InvalidShape(shape []int, axis int) *Error {
	return New(KindInvalidShape).
		Phase(PhaseShape).
		Detail("dimension %d of %v is negative", axis, shape).
		Build()
}

// ShapeOverflow reports a shape whose element count or byte size does not fit.
func ShapeOverflow(shape []int, itemSize int) *Error {
	return New(KindShapeOverflow).
		Phase(PhaseShape).
		Detail("shape %v with item size %d overflows", shape, itemSize).
		Build()
}

// Unsupported reports a dtype conversion or construction with no mapping.
func Unsupported(msg string, args ...any) *Error {
	return New(KindUnsupportedDtype).Detail(msg, args...).Build()
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
