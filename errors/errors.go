package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve   Phase = "resolve"   // method lookup and reference resolution
	PhaseRead      Phase = "read"      // capturing source bodies
	PhaseTransfuse Phase = "transfuse" // instruction cloning and import
	PhaseLink      Phase = "link"      // relink and compaction
	PhaseCommit    Phase = "commit"    // final body swap
	PhaseDecode    Phase = "decode"    // container decoding
	PhaseEncode    Phase = "encode"    // container encoding
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindUnresolved  Kind = "unresolved_reference"
	KindUnsupported Kind = "unsupported_operand"
	KindInvalidBody Kind = "invalid_body"
	KindInvalidData Kind = "invalid_data"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
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

// Unwrap returns the underlying cause for errors.Is/As chains
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by Phase and Kind. A zero Phase or Kind in the
// target acts as a wildcard.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// IsKind reports whether err is a structured error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
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

// Path sets the context path (module, type, or member names)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// NotFound creates an error for a named method absent from a module
func NotFound(phase Phase, name, module string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{module},
		Detail: fmt.Sprintf("method %q not found", name),
	}
}

// Unresolved creates an error for a reference without a defining declaration
func Unresolved(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnresolved,
		Detail: fmt.Sprintf("cannot resolve %s", what),
	}
}

// Unsupported creates an error for an operand kind outside the recognized set
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidBody creates an error for a body violating a structural invariant
func InvalidBody(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRead,
		Kind:   KindInvalidBody,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// InvalidData creates an error for malformed container bytes
func InvalidData(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf(detail, args...),
	}
}
