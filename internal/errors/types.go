// Package errors provides the structured error model for the site builder.
//
// Two shapes are used throughout the pipeline: SiteError for errors that
// carry a category and an affected path, and FileError for per-file
// processing failures that are collected during a run instead of aborting
// it. Protection-tool failures are the canonical recoverable case; I/O
// failures reading sources or writing outputs are not.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes site builder errors.
type ErrorType string

const (
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeProtect  ErrorType = "protect"
	ErrorTypeInternal ErrorType = "internal"
)

// SiteError is a structured error with category, affected path, and cause.
type SiteError struct {
	Type        ErrorType
	Message     string
	Path        string
	Cause       error
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	msg = fmt.Sprintf("[%s] %s", e.Type, msg)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is matches SiteErrors by type, so callers can compare against a
// bare &SiteError{Type: ...} sentinel.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type
}

// NewIOError creates a fatal I/O error for the given path.
func NewIOError(path, message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeIO,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeConfig,
		Message: message,
		Cause:   cause,
	}
}

// NewRenderError creates an error for a markdown rendering failure.
func NewRenderError(path, message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeRender,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// NewProtectError creates a recoverable error for a protection-tool
// failure. The affected file is retried on the next run.
func NewProtectError(path, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeProtect,
		Message:     message,
		Path:        path,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewInternalError creates an internal invariant-violation error.
func NewInternalError(message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeInternal,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable reports whether err (or any error it wraps) is a
// recoverable SiteError.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}
	return false
}
