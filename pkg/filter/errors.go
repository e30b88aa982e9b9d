package filter

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKind classifies filter errors so callers can map them to HTTP
// statuses without string matching.
type ErrKind string

const (
	// User errors: the request carried an expression the field cannot satisfy.
	ErrUnsupportedQualifier ErrKind = "unsupported_qualifier"
	ErrInvalidValue         ErrKind = "invalid_value"
	ErrEmptyValue           ErrKind = "empty_value"
	ErrTypeMismatch         ErrKind = "type_mismatch"

	// Configuration error: no filter registered for the field's kind.
	// Never caused by request input.
	ErrNoFilterForKind ErrKind = "no_filter_for_kind"
)

// Error is a structured filter error carrying the offending field,
// qualifier and raw value for diagnostics.
type Error struct {
	Kind      ErrKind
	Field     Field
	Qualifier Qualifier
	Value     string
	Message   string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s for %s", e.Kind, e.Field.Ident())
}

// UserError reports whether the error was caused by request input, as
// opposed to a misconfigured resolver.
func (e *Error) UserError() bool {
	return e.Kind != ErrNoFilterForKind
}

// HTTPStatus maps the error kind to a response status. Malformed request
// shapes get 418; bad values get 400.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrUnsupportedQualifier, ErrEmptyValue:
		return http.StatusTeapot
	case ErrInvalidValue, ErrTypeMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the ErrKind from err, or "" if err is not a filter
// error.
func KindOf(err error) ErrKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func errUnsupportedQualifier(f Field, q Qualifier) *Error {
	return &Error{
		Kind:      ErrUnsupportedQualifier,
		Field:     f,
		Qualifier: q,
		Message:   fmt.Sprintf("qualifier %q not supported for type %s (%s)", q, f.Kind, f.Ident()),
	}
}

func errInvalidValue(f Field, q Qualifier, v, format string) *Error {
	return &Error{
		Kind:      ErrInvalidValue,
		Field:     f,
		Qualifier: q,
		Value:     v,
		Message:   fmt.Sprintf("invalid %s value {%s} for %s", format, v, f.Ident()),
	}
}

func errEmptyValue(f Field, q Qualifier, msg string) *Error {
	return &Error{
		Kind:      ErrEmptyValue,
		Field:     f,
		Qualifier: q,
		Message:   msg,
	}
}

func errTypeMismatch(f Field, q Qualifier, v string) *Error {
	return &Error{
		Kind:      ErrTypeMismatch,
		Field:     f,
		Qualifier: q,
		Value:     v,
		Message:   fmt.Sprintf("values for filter %s must be the same type", f.Ident()),
	}
}
