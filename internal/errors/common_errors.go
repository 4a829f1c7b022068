package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeNetwork     ErrorType = "NETWORK"
	ErrTypeTimeout     ErrorType = "TIMEOUT"
	ErrTypeParsing     ErrorType = "PARSING"
	ErrTypeSchemaDrift ErrorType = "SCHEMA_DRIFT"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeConfig      ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewNetworkError creates a transport error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewTimeoutError creates an error for a request that ran out of time
func NewTimeoutError(message string, cause error) *AppError {
	return NewAppError(ErrTypeTimeout, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// SchemaDriftError reports that a human-edited sheet no longer has the layout
// the loader expects. Unexpected and Missing list the offending labels.
type SchemaDriftError struct {
	*AppError
	Unexpected []string
	Missing    []string
}

// NewSchemaDriftError creates a drift error. Label lists may be nil.
func NewSchemaDriftError(message string, unexpected, missing []string) *SchemaDriftError {
	e := &SchemaDriftError{
		AppError:   NewAppError(ErrTypeSchemaDrift, message, nil),
		Unexpected: unexpected,
		Missing:    missing,
	}
	if len(unexpected) > 0 {
		e.WithContext("unexpected", unexpected)
	}
	if len(missing) > 0 {
		e.WithContext("missing", missing)
	}
	return e
}

// Error lists every offending label after the message
func (e *SchemaDriftError) Error() string {
	var b strings.Builder
	b.WriteString(e.AppError.Error())
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected: %s", quoteAll(e.Unexpected))
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing: %s", quoteAll(e.Missing))
	}
	return b.String()
}

// Unwrap exposes the embedded AppError to errors.As
func (e *SchemaDriftError) Unwrap() error {
	return e.AppError
}

func quoteAll(labels []string) string {
	q := make([]string, len(labels))
	for i, l := range labels {
		q[i] = fmt.Sprintf("%q", l)
	}
	return strings.Join(q, ", ")
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsTimeout reports whether err is a timeout: a TIMEOUT AppError, a context
// deadline, or a net.Error that timed out.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if IsType(err, ErrTypeTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsSchemaDrift reports whether err is, or wraps, a SchemaDriftError
func IsSchemaDrift(err error) bool {
	var drift *SchemaDriftError
	return errors.As(err, &drift)
}
