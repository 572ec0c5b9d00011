package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies service errors so the HTTP layer can map them to status codes
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindForbidden  ErrorKind = "forbidden"
)

// Error represents a service error
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields holds per-field messages for validation errors, keyed by field id
	Fields map[string]string
	Err    error
}

// Sentinels for errors.Is
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrForbidden  = &Error{Kind: KindForbidden}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any error of the same kind, so errors.Is(err, ErrNotFound) works for every not-found error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Fields == nil
}

// ValidationFailed builds a validation error carrying per-field messages
func ValidationFailed(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound builds a not-found error for a resource
func NotFound(resource string, id interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

// Conflict builds a conflict error
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a forbidden error
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a service error, or "" for anything else (storage failures and the like)
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DatabaseError represents different types of database errors
type DatabaseError struct {
	Type    string
	Message string
	Err     error
}

func (e *DatabaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Common database error types
const (
	ErrTypeConnection = "CONNECTION_ERROR"
	ErrTypeQuery      = "QUERY_ERROR"
	ErrTypeConstraint = "CONSTRAINT_VIOLATION"
)

// WrapDatabaseError wraps a database error with additional context
func WrapDatabaseError(errType, message string, err error) *DatabaseError {
	return &DatabaseError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}
