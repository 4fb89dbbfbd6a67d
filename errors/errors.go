package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which component raised the error
type Phase string

const (
	PhaseBroker   Phase = "broker"   // handle table operations
	PhaseStore    Phase = "store"    // vector store operations
	PhaseIndex    Phase = "index"    // similarity index backends
	PhaseModel    Phase = "model"    // model construction and inference
	PhaseContent  Phase = "content"  // pages and nodes
	PhaseBoundary Phase = "boundary" // guest <-> host translation
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseLoad     Phase = "load"     // guest module loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindOwnershipViolation  Kind = "ownership_violation"
	KindConstructionFailure Kind = "construction_failure"
	KindIndexFailure        Kind = "index_failure"
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidData         Kind = "invalid_data"
	KindTypeMismatch        Kind = "type_mismatch"
	KindUnsupported         Kind = "unsupported"
	KindClosed              Kind = "closed"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindRegistration        Kind = "registration"
	KindInstantiation       Kind = "instantiation"
	KindBackendFailure      Kind = "backend_failure"
)

// Error is the structured error type used throughout the host
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
	ID       uint64
	HasID    bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Resource != "" {
		b.WriteString(" ")
		b.WriteString(e.Resource)
		if e.HasID {
			b.WriteString(fmt.Sprintf(" #%d", e.ID))
		}
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

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Resource sets the resource kind name
func (b *Builder) Resource(name string) *Builder {
	b.err.Resource = name
	return b
}

// ID sets the boundary id of the resource
func (b *Builder) ID(id uint64) *Builder {
	b.err.ID = id
	b.err.HasID = true
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an *Error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err signals a stale or absent handle.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsOwnershipViolation reports whether err signals a release through a
// borrowed handle.
func IsOwnershipViolation(err error) bool {
	return IsKind(err, KindOwnershipViolation)
}

// Convenience constructors for common error patterns

// NotFound creates a not-found error for a stale or never-valid handle
func NotFound(phase Phase, resource string, id uint64) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindNotFound,
		Resource: resource,
		ID:       id,
		HasID:    true,
		Detail:   "not found; it may have been already dropped",
	}
}

// OwnershipViolation creates an error for a release through a non-owning handle
func OwnershipViolation(phase Phase, resource string, id uint64) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOwnershipViolation,
		Resource: resource,
		ID:       id,
		HasID:    true,
		Detail:   "release requires an owned handle",
	}
}

// ConstructionFailure creates an error for a lazily built value that failed
// to initialize
func ConstructionFailure(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConstructionFailure,
		Detail: fmt.Sprintf("construct %s", what),
		Cause:  cause,
	}
}

// IndexFailure creates an error for a failed add/query on a healthy index
func IndexFailure(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseIndex,
		Kind:   KindIndexFailure,
		Detail: op,
		Cause:  cause,
	}
}

// TypeMismatch creates an error for a slot holding an unexpected value type
func TypeMismatch(phase Phase, resource string, got any) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Resource: resource,
		Detail:   fmt.Sprintf("unexpected value of type %T", got),
		Value:    got,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Closed creates an error for operations on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// OutOfBounds creates an out of bounds error for guest memory access
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds", offset, uint64(offset)+uint64(length)),
		Value:  offset,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// BackendFailure creates an error for a failed call into a model or content
// backend
func BackendFailure(phase Phase, op string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBackendFailure,
		Detail: op,
		Cause:  cause,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a guest loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
