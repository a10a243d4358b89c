// Package sberrors defines the structured error type surfaced across the
// sandbox execution core, mirroring the failure taxonomy the rest of the
// system needs to distinguish programmatically.
package sberrors

import "fmt"

// Code identifies one of the closed set of failure kinds the core can
// surface. Never compare error strings; compare Code.
type Code string

const (
	CodeBlocked          Code = "blocked"
	CodeConnectionFailed Code = "connection_failed"
	CodeTimeout          Code = "timeout"
	CodeSyntaxError      Code = "syntax_error"
	CodeSessionExpired   Code = "session_expired"
	CodeNotOwner         Code = "not_owner"
	CodeTooManySessions  Code = "too_many_sessions"
	CodeCreationFailed   Code = "creation_failed"
	CodeNotFound         Code = "not_found"
	CodeInternal         Code = "internal"
)

// SandboxError is the structured error type returned by every component
// of the core whose failure must be distinguished by kind rather than by
// string matching.
type SandboxError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *SandboxError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SandboxError) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error and returns the receiver for chaining.
func (e *SandboxError) WithCause(cause error) *SandboxError {
	e.Cause = cause
	return e
}

// WithDetails merges the given details into the error and returns the receiver.
func (e *SandboxError) WithDetails(details map[string]interface{}) *SandboxError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func New(code Code, message string) *SandboxError {
	return &SandboxError{Code: code, Message: message}
}

func NewBlocked(message string) *SandboxError {
	return New(CodeBlocked, message)
}

func NewConnectionFailed(message string, cause error) *SandboxError {
	return New(CodeConnectionFailed, message).WithCause(cause)
}

func NewTimeout(message string) *SandboxError {
	return New(CodeTimeout, message)
}

func NewSyntaxError(message string) *SandboxError {
	return New(CodeSyntaxError, message)
}

func NewSessionExpired() *SandboxError {
	return New(CodeSessionExpired, "SESSION_EXPIRED")
}

func NewNotOwner() *SandboxError {
	return New(CodeNotOwner, "session belongs to another user")
}

func NewTooManySessions(max int) *SandboxError {
	return New(CodeTooManySessions, "too many active sessions").
		WithDetails(map[string]interface{}{"max_sessions": max})
}

func NewCreationFailed(message string, cause error) *SandboxError {
	return New(CodeCreationFailed, message).WithCause(cause)
}

func NewNotFound(message string) *SandboxError {
	return New(CodeNotFound, message)
}

func NewInternal(cause error) *SandboxError {
	return New(CodeInternal, "internal error").WithCause(cause)
}

// Is reports whether err is a *SandboxError with the given code.
func Is(err error, code Code) bool {
	se, ok := err.(*SandboxError)
	if !ok {
		return false
	}
	return se.Code == code
}

// As extracts a *SandboxError from err, following Unwrap, à la errors.As.
func As(err error) (*SandboxError, bool) {
	for err != nil {
		if se, ok := err.(*SandboxError); ok {
			return se, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
