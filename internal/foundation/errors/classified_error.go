package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError is a structured error with category, severity, and context.
type ClassifiedError struct {
	category Category
	severity Severity
	message  string
	cause    error
	context  Context
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Category returns the error category.
func (e *ClassifiedError) Category() Category {
	return e.category
}

// Severity returns the error severity.
func (e *ClassifiedError) Severity() Severity {
	return e.severity
}

// Message returns the error message without classification prefix.
func (e *ClassifiedError) Message() string {
	return e.message
}

// Context returns the error context.
func (e *ClassifiedError) Context() Context {
	return e.context
}

// IsFatal reports whether the error should abort the whole build.
func (e *ClassifiedError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// CategoryOf extracts the category from err, walking the unwrap chain.
// Unclassified errors report CategoryInternal.
func CategoryOf(err error) Category {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce.Category()
	}
	return CategoryInternal
}

// IsCategory reports whether err (or anything it wraps) carries the category.
func IsCategory(err error, cat Category) bool {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce.Category() == cat
	}
	return false
}
