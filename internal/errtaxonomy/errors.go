// Package errtaxonomy models the CDP-Skill error taxonomy: the four
// top-level classes (PARSE, VALIDATION, CONNECTION, EXECUTION) and the
// EXECUTION subtypes, plus the JSON shape emitted on a fatal or step-level
// failure.
package errtaxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Type is one of the four top-level error classes.
type Type string

const (
	Parse          Type = "PARSE"
	Validation     Type = "VALIDATION"
	Connection     Type = "CONNECTION"
	ExecutionClass Type = "EXECUTION"
)

// Subtype names an EXECUTION-class error more precisely. Empty for the other
// three top-level classes, which have no further breakdown.
type Subtype string

const (
	SubtypeNone               Subtype = ""
	SubtypeNavigation         Subtype = "NavigationError"
	SubtypeNavigationAborted  Subtype = "NavigationAbortedError"
	SubtypeTimeout            Subtype = "TimeoutError"
	SubtypeElementNotFound    Subtype = "ElementNotFoundError"
	SubtypeElementNotEditable Subtype = "ElementNotEditableError"
	SubtypeStaleElement       Subtype = "StaleElementError"
	SubtypePageCrashed        Subtype = "PageCrashedError"
	SubtypeContextDestroyed   Subtype = "ContextDestroyedError"
	SubtypeStepValidation     Subtype = "StepValidationError"
)

// Error is the engine's error value. It always carries enough information to
// produce the `{status:"error", error:{type, message}}` response shape.
type Error struct {
	Class   Type
	Subtype Subtype
	Message string
	// Cause is the underlying error, if any, retained for errors.Unwrap and
	// logging; it is never serialised directly.
	Cause error
}

func (e *Error) Error() string {
	if e.Subtype != SubtypeNone {
		return fmt.Sprintf("%s/%s: %s", e.Class, e.Subtype, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// TypeString returns the value to serialise in the response's error.type
// field: the subtype name when present, otherwise the class name.
func (e *Error) TypeString() string {
	if e.Subtype != SubtypeNone {
		return string(e.Subtype)
	}
	return string(e.Class)
}

func newf(class Type, sub Subtype, format string, args ...any) *Error {
	return &Error{Class: class, Subtype: sub, Message: fmt.Sprintf(format, args...)}
}

func wrapf(class Type, sub Subtype, cause error, format string, args ...any) *Error {
	e := newf(class, sub, format, args...)
	e.Cause = cause
	return e
}

// ParseErrorf builds a fatal PARSE error (malformed JSON request).
func ParseErrorf(format string, args ...any) *Error {
	return newf(Parse, SubtypeNone, format, args...)
}

// ValidationErrorf builds a fatal VALIDATION error (bad request shape).
func ValidationErrorf(format string, args ...any) *Error {
	return newf(Validation, SubtypeNone, format, args...)
}

// ConnectionErrorf builds a fatal CONNECTION error (unreachable browser).
func ConnectionErrorf(cause error, format string, args ...any) *Error {
	return wrapf(Connection, SubtypeNone, cause, format, args...)
}

// Execution builds a step-scoped EXECUTION error of the given subtype.
func Execution(sub Subtype, cause error, format string, args ...any) *Error {
	return wrapf(ExecutionClass, sub, cause, format, args...)
}

// StepValidationErrorf builds a StepValidationError: invalid step shape
// detected before the browser is touched.
func StepValidationErrorf(format string, args ...any) *Error {
	return newf(ExecutionClass, SubtypeStepValidation, format, args...)
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Response is the JSON shape of error.{type,message} in the top-level
// response envelope.
type Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ToResponse converts an *Error (or any error, treated as an opaque
// EXECUTION failure) into the wire shape.
func ToResponse(err error) Response {
	if e, ok := As(err); ok {
		return Response{Type: e.TypeString(), Message: e.Message}
	}
	return Response{Type: string(ExecutionClass), Message: err.Error()}
}

// IsStale reports whether a raw CDP error message indicates the element's
// backing DOM node or JS reference is gone. CDP does not expose a typed
// error for this condition — it surfaces only as a message string echoed
// back from `Runtime.evaluate`/`DOM.resolveNode`, hence the pattern match
// described in spec.md §6.
func IsStale(msg string) bool {
	return containsAny(msg, []string{
		"Could not find node",
		"Node is detached",
		"Cannot find context with specified id",
		"No node with given id found",
	})
}

// IsContextDestroyed reports whether a raw CDP error message indicates the
// execution context was torn down, e.g. by a navigation racing the command.
func IsContextDestroyed(msg string) bool {
	return containsAny(msg, []string{
		"Execution context was destroyed",
		"Cannot find context with specified id",
		"Inspected target navigated or closed",
	})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
