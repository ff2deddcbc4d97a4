// Package errs provides the unified error type used across all of rowmap.
//
// Every subsystem (schema, cast, record, database, filestore, …) wraps its
// native errors into *errs.Error before returning them to callers. Callers
// use the Is* predicates to handle errors without importing driver-specific
// packages.
//
// Usage:
//
//	// In the caster, report an attribute that cannot hold a value:
//	return errs.ForAttribute(errs.ErrKindDataTypeCasting, "User", "name", "cannot cast null to string")
//
//	// In a repository, attach the statement that produced the row:
//	return errs.WithQuery(err, sql)
//
//	// In a handler, check error kind:
//	if errs.IsUnknownAttribute(err) {
//	    http.Error(w, err.Error(), http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure

	ErrKindDataTypeMismatch  // stored value does not fit its attribute
	ErrKindDataTypeCasting   // caller-supplied value does not fit its attribute
	ErrKindUnknownSTIType    // discriminator value has no registered subtype
	ErrKindUnknownAttribute  // name is not declared by the schema
	ErrKindInvalidDefinition // schema declaration is inconsistent
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindDataTypeMismatch:
		return "data_type_mismatch"
	case ErrKindDataTypeCasting:
		return "data_type_casting"
	case ErrKindUnknownSTIType:
		return "unknown_sti_type"
	case ErrKindUnknownAttribute:
		return "unknown_attribute"
	case ErrKindInvalidDefinition:
		return "invalid_definition"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all rowmap subsystems.
// Model, Attribute and Query are filled in by the kernel so that a cast
// failure can be acted upon without re-running with extra diagnostics.
type Error struct {
	Kind      ErrKind
	Message   string
	Cause     error // original driver-level error, preserved for logging
	Model     string
	Attribute string
	Query     string // statement that produced the offending row, if known
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(e.Kind.String())
	sb.WriteString("] ")

	switch {
	case e.Model != "" && e.Attribute != "":
		sb.WriteString(e.Model + "." + e.Attribute + ": ")
	case e.Model != "":
		sb.WriteString(e.Model + ": ")
	case e.Attribute != "":
		sb.WriteString(e.Attribute + ": ")
	}
	sb.WriteString(e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	if e.Query != "" {
		fmt.Fprintf(&sb, " (query: %s)", e.Query)
	}
	return sb.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// ForAttribute creates an *Error scoped to one attribute of one model.
func ForAttribute(kind ErrKind, model, attr, msg string) *Error {
	return &Error{Kind: kind, Model: model, Attribute: attr, Message: msg}
}

// WithQuery returns err with the triggering query attached. Only *Error
// values are annotated; a copy is returned so shared errors stay intact.
// An empty query returns err unchanged.
func WithQuery(err error, query string) error {
	if err == nil || query == "" {
		return err
	}
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	cp.Query = query
	return &cp
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing object, unknown table/bucket, …).
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// IsDataTypeMismatch reports whether a value read from storage did not fit
// its declared attribute.
func IsDataTypeMismatch(err error) bool {
	return kindOf(err) == ErrKindDataTypeMismatch
}

// IsDataTypeCasting reports whether a caller-supplied value did not fit its
// declared attribute.
func IsDataTypeCasting(err error) bool {
	return kindOf(err) == ErrKindDataTypeCasting
}

// IsUnknownSTIType reports whether a discriminator value had no subtype.
func IsUnknownSTIType(err error) bool {
	return kindOf(err) == ErrKindUnknownSTIType
}

// IsUnknownAttribute reports whether err names an undeclared attribute.
func IsUnknownAttribute(err error) bool {
	return kindOf(err) == ErrKindUnknownAttribute
}

// IsInvalidDefinition reports whether err comes from a bad schema declaration.
func IsInvalidDefinition(err error) bool {
	return kindOf(err) == ErrKindInvalidDefinition
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	return kindOf(err)
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
