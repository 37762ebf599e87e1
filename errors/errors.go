package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // native library loading
	PhaseEncode   Phase = "encode"   // Go to native payload
	PhaseDecode   Phase = "decode"   // native payload to Go
	PhaseDispatch Phase = "dispatch" // native entry point calls
	PhaseRegister Phase = "register" // owner and capability registration
	PhaseConfig   Phase = "config"   // configuration parsing
	PhaseScenario Phase = "scenario" // scenario scripts
)

// Kind categorizes the error
type Kind string

const (
	KindMissingExport     Kind = "missing_export"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindAllocation        Kind = "allocation"
	KindInvalidData       Kind = "invalid_data"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindStaleOwner        Kind = "stale_owner"
	KindTypeMismatch      Kind = "type_mismatch"
	KindClosed            Kind = "closed"
	KindExhausted         Kind = "exhausted"
	KindTrap              Kind = "trap"
	KindUnknownCapability Kind = "unknown_capability"
	KindDuplicate         Kind = "duplicate"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Entry  string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Entry != "" {
		b.WriteString(" in ")
		b.WriteString(e.Entry)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
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

// Entry sets the native entry point name
func (b *Builder) Entry(name string) *Builder {
	b.err.Entry = name
	return b
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// Convenience constructors for common error patterns

// MissingExport creates an error for a native entry point the library does not export
func MissingExport(entry string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindMissingExport,
		Entry:  entry,
		Detail: fmt.Sprintf("export %q not found", entry),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, entry string, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Entry:  entry,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, entry string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Entry:  entry,
		Detail: fmt.Sprintf("range [%d, %d) outside linear memory", offset, uint64(offset)+uint64(length)),
		Value:  offset,
	}
}

// StaleOwner creates an error for a handle that no longer resolves to a live owner
func StaleOwner(entry string, handle uint64) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindStaleOwner,
		Entry:  entry,
		Detail: fmt.Sprintf("no live owner for handle 0x%x", handle),
		Value:  handle,
	}
}

// TypeMismatch creates an owner type mismatch error
func TypeMismatch(phase Phase, entry, want string, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Entry:  entry,
		Detail: fmt.Sprintf("want %s, got %T", want, got),
		Value:  got,
	}
}

// UnknownCapability creates an error for a capability that has no dispatch entry
func UnknownCapability(iface, method string, id uint32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnknownCapability,
		Path:   []string{iface, method},
		Detail: fmt.Sprintf("capability id 0x%08x not dispatchable", id),
		Value:  id,
	}
}

// Trap wraps a failure raised while executing native code
func Trap(entry string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindTrap,
		Entry:  entry,
		Detail: "native code trapped",
		Cause:  cause,
	}
}

// Closed creates an error for operations on a closed library or arena
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// InvalidData creates an error for bytes from native code that do not decode
func InvalidData(phase Phase, entry string, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Entry:  entry,
		Detail: detail,
		Cause:  cause,
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

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
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

// Duplicate creates an error for a name registered twice
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("%s %q already registered", what, name),
	}
}

// Load creates a native library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
