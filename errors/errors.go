package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseIntrospect Phase = "introspect" // type descriptor queries
	PhaseEncode     Phase = "encode"     // host value to dynamic data
	PhaseDecode     Phase = "decode"     // dynamic data to host value
	PhaseCursor     Phase = "cursor"     // bind/unbind/allocate/release
	PhasePublish    Phase = "publish"    // write/dispose/unregister
	PhaseSubscribe  Phase = "subscribe"  // read/take/return loan
	PhaseLookup     Phase = "lookup"     // entity lookup by name
	PhaseListener   Phase = "listener"   // listener installation
	PhaseConfig     Phase = "config"     // participant library loading
)

// Kind categorizes the error
type Kind string

const (
	KindReturnCode        Kind = "return_code"
	KindNoData            Kind = "no_data"
	KindTypeIntrospection Kind = "type_introspection"
	KindNullResult        Kind = "null_result"
	KindRange             Kind = "range"
	KindInvalidValue      Kind = "invalid_value"
	KindUnsupportedKind   Kind = "unsupported_kind"
	KindTypeMismatch      Kind = "type_mismatch"
	KindClosed            Kind = "closed"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
)

// ReturnCode is a middleware return code. Numbering follows the DDS C API.
type ReturnCode int32

const (
	RetcodeOK ReturnCode = iota
	RetcodeError
	RetcodeUnsupported
	RetcodeBadParameter
	RetcodePreconditionNotMet
	RetcodeOutOfResources
	RetcodeNotEnabled
	RetcodeImmutablePolicy
	RetcodeInconsistentPolicy
	RetcodeAlreadyDeleted
	RetcodeTimeout
	RetcodeNoData
	RetcodeIllegalOperation
)

var returnCodeNames = [...]string{
	RetcodeOK:                 "ok",
	RetcodeError:              "error",
	RetcodeUnsupported:        "unsupported",
	RetcodeBadParameter:       "bad parameter",
	RetcodePreconditionNotMet: "precondition not met",
	RetcodeOutOfResources:     "out of resources",
	RetcodeNotEnabled:         "not enabled",
	RetcodeImmutablePolicy:    "immutable policy",
	RetcodeInconsistentPolicy: "inconsistent policy",
	RetcodeAlreadyDeleted:     "already deleted",
	RetcodeTimeout:            "timeout",
	RetcodeNoData:             "no data",
	RetcodeIllegalOperation:   "illegal operation",
}

func (rc ReturnCode) String() string {
	if rc >= 0 && int(rc) < len(returnCodeNames) {
		return returnCodeNames[rc]
	}
	return fmt.Sprintf("retcode(%d)", int32(rc))
}

// ExceptionCode is the sub-code reported by type introspection calls.
type ExceptionCode int32

const (
	ExOK ExceptionCode = iota
	ExUser
	ExSystem
	ExBadParam
	ExNoMemory
	ExBadTypeCode
	ExBadKind
	ExBounds
	ExImmutableTypeCode
	ExBadMemberName
	ExBadMemberID
)

var exceptionNames = [...]string{
	ExOK:                "ok",
	ExUser:              "user",
	ExSystem:            "system",
	ExBadParam:          "bad param",
	ExNoMemory:          "no memory",
	ExBadTypeCode:       "bad typecode",
	ExBadKind:           "bad kind",
	ExBounds:            "bounds",
	ExImmutableTypeCode: "immutable typecode",
	ExBadMemberName:     "bad member name",
	ExBadMemberID:       "bad member id",
}

func (ec ExceptionCode) String() string {
	if ec >= 0 && int(ec) < len(exceptionNames) {
		return exceptionNames[ec]
	}
	return fmt.Sprintf("exception(%d)", int32(ec))
}

// Origin reports whether the exception is caused by the caller ("user") or
// by the type system itself ("system").
func (ec ExceptionCode) Origin() string {
	switch ec {
	case ExUser, ExBadKind, ExBounds, ExBadMemberName, ExBadMemberID:
		return "user"
	case ExOK:
		return ""
	default:
		return "system"
	}
}

// Error is the structured error type used throughout the module
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	TypeKind  string
	GoType    string
	Detail    string
	Path      []string
	Code      ReturnCode
	Exception ExceptionCode
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	switch {
	case e.Code != RetcodeOK:
		b.WriteByte('(')
		b.WriteString(e.Code.String())
		b.WriteByte(')')
	case e.Exception != ExOK:
		b.WriteByte('(')
		b.WriteString(e.Exception.String())
		if o := e.Exception.Origin(); o != "" && o != e.Exception.String() {
			b.WriteString(", ")
			b.WriteString(o)
		}
		b.WriteByte(')')
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.TypeKind != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.TypeKind != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", DDS kind ")
			b.WriteString(e.TypeKind)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("DDS kind ")
			b.WriteString(e.TypeKind)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.TypeKind != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Is reports whether target matches this error. Zero-valued fields of the
// target match anything.
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
	if t.Code != RetcodeOK && t.Code != e.Code {
		return false
	}
	if t.Exception != ExOK && t.Exception != e.Exception {
		return false
	}
	return true
}

// Sentinels for errors.Is.
var (
	ErrNoData            = &Error{Kind: KindNoData}
	ErrRange             = &Error{Kind: KindRange}
	ErrInvalidValue      = &Error{Kind: KindInvalidValue}
	ErrUnsupportedKind   = &Error{Kind: KindUnsupportedKind}
	ErrNullResult        = &Error{Kind: KindNullResult}
	ErrTypeIntrospection = &Error{Kind: KindTypeIntrospection}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrClosed            = &Error{Kind: KindClosed}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

// IsNoData reports whether err is the "nothing available" return code.
func IsNoData(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == KindNoData || e.Code == RetcodeNoData
}

// CodeOf returns the middleware return code carried by err, RetcodeOK for
// nil and RetcodeError for errors that carry none.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return RetcodeOK
	}
	var e *Error
	if stderrors.As(err, &e) && e.Code != RetcodeOK {
		return e.Code
	}
	return RetcodeError
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

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// TypeKind sets the DDS type kind name
func (b *Builder) TypeKind(k string) *Builder {
	b.err.TypeKind = k
	return b
}

// Code sets the middleware return code
func (b *Builder) Code(rc ReturnCode) *Builder {
	b.err.Code = rc
	return b
}

// Exception sets the type introspection exception code
func (b *Builder) Exception(ec ExceptionCode) *Builder {
	b.err.Exception = ec
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

// FromReturnCode creates an error for a failed middleware call. NO_DATA is
// classified as KindNoData, everything else as KindReturnCode.
func FromReturnCode(phase Phase, rc ReturnCode, detail string, args ...any) *Error {
	kind := KindReturnCode
	if rc == RetcodeNoData {
		kind = KindNoData
	}
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Code:   rc,
		Detail: detail,
	}
}

// Introspection creates a type introspection error
func Introspection(code ExceptionCode, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:     PhaseIntrospect,
		Kind:      KindTypeIntrospection,
		Exception: code,
		Detail:    detail,
	}
}

// NullResult creates an error for a handle-returning call that returned none
func NullResult(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullResult,
		Detail: what + " returned no handle",
	}
}

// Range creates a range violation error for a bounded integer kind
func Range(phase Phase, path []string, value any, typeKind string, lo, hi string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindRange,
		Path:     path,
		TypeKind: typeKind,
		Detail:   fmt.Sprintf("%v not in range [%s, %s)", value, lo, hi),
		Value:    value,
	}
}

// InvalidValue creates an invalid value error
func InvalidValue(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidValue,
		Path:   path,
		Detail: detail,
	}
}

// UnsupportedKind creates an error for a type kind with no marshalling rule
func UnsupportedKind(phase Phase, path []string, typeKind string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnsupportedKind,
		Path:     path,
		TypeKind: typeKind,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, typeKind string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		GoType:   goType,
		TypeKind: typeKind,
	}
}

// Closed creates an error for an operation on a closed entity
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " is closed",
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
func InvalidInput(phase Phase, path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Path:   path,
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
