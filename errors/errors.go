package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit    Phase = "init"    // domain initialization
	PhaseCall    Phase = "call"    // cross-domain call
	PhaseResolve Phase = "resolve" // registry lookup
	PhaseHeap    Phase = "heap"    // shared heap access
	PhaseLoad    Phase = "load"    // domain construction
	PhaseConfig  Phase = "config"  // manifest loading
	PhaseDevice  Phase = "device"  // device access
	PhaseRecover Phase = "recover" // crash recovery
)

// Kind categorizes the error
type Kind string

const (
	KindCrash             Kind = "crash"
	KindDevice            Kind = "device"
	KindContractViolation Kind = "contract_violation"
	KindNotFound          Kind = "not_found"
	KindKindMismatch      Kind = "kind_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidInput      Kind = "invalid_input"
	KindNotInitialized    Kind = "not_initialized"
	KindMoved             Kind = "moved"
	KindBorrowed          Kind = "borrowed"
	KindPoisoned          Kind = "poisoned"
	KindCanceled          Kind = "canceled"
	KindCycle             Kind = "cycle"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Domain   string
	Op       string
	Detail   string
	DomainID uint64
}

// Sentinels for errors.Is. They match any phase.
var (
	ErrCrash             = &Error{Kind: KindCrash}
	ErrDevice            = &Error{Kind: KindDevice}
	ErrContractViolation = &Error{Kind: KindContractViolation}
)

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Domain != "" || e.DomainID != 0 {
		b.WriteString(" in ")
		if e.Domain != "" {
			b.WriteString(e.Domain)
		}
		if e.DomainID != 0 {
			fmt.Fprintf(&b, "#%d", e.DomainID)
		}
	}

	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
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

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
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

// Domain sets the domain name and identity
func (b *Builder) Domain(name string, id uint64) *Builder {
	b.err.Domain = name
	b.err.DomainID = id
	return b
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
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

// Crash creates the error returned when a callee faulted during a call.
// Value holds whatever the fault carried.
func Crash(domain string, id uint64, op string, value any) *Error {
	e := &Error{
		Phase:    PhaseCall,
		Kind:     KindCrash,
		Domain:   domain,
		DomainID: id,
		Op:       op,
		Value:    value,
		Detail:   fmt.Sprintf("domain faulted: %v", value),
	}
	if cause, ok := value.(error); ok {
		e.Cause = cause
	}
	return e
}

// Device creates a device failure error
func Device(op string, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseDevice,
		Kind:   KindDevice,
		Op:     op,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// ContractViolation creates a contract violation error
func ContractViolation(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindContractViolation,
		Detail: fmt.Sprintf(detail, args...),
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

// KindMismatch creates an error for a handle of the wrong capability kind
func KindMismatch(phase Phase, name, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindKindMismatch,
		Domain: name,
		Detail: fmt.Sprintf("want %s capability, got %s", want, got),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
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

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
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

// Load creates a domain construction error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCrash reports whether err is a crash signal.
func IsCrash(err error) bool {
	return KindOf(err) == KindCrash
}

// IsDevice reports whether err is a device failure.
func IsDevice(err error) bool {
	return KindOf(err) == KindDevice
}

// IsContractViolation reports whether err is a contract violation.
func IsContractViolation(err error) bool {
	return KindOf(err) == KindContractViolation
}
