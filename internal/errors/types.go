package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeCodec      ErrorType = "codec"
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeChannel    ErrorType = "channel"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// SyncError is a structured error type with context.
type SyncError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	WidgetID    string
	Event       string
	Recoverable bool
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.WidgetID != "" {
		parts = append(parts, "widget:"+e.WidgetID)
	}

	if e.Event != "" {
		parts = append(parts, "event:"+e.Event)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SyncError) Is(target error) bool {
	var t *SyncError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithWidget adds widget context.
func (e *SyncError) WithWidget(id string) *SyncError {
	e.WidgetID = id

	return e
}

// WithEvent adds the channel event name the error relates to.
func (e *SyncError) WithEvent(name string) *SyncError {
	e.Event = name

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SyncError {
	return &SyncError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewCodecError creates an encode or decode error.
func NewCodecError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:        ErrorTypeCodec,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewStoreError creates a cache store error.
func NewStoreError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:        ErrorTypeStore,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewChannelError creates a sync channel error.
func NewChannelError(code, message string) *SyncError {
	return &SyncError{
		Type:        ErrorTypeChannel,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewTransportError creates a socket transport error.
func NewTransportError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:        ErrorTypeTransport,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SyncError {
	return &SyncError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsType reports whether err is a SyncError of the given type.
func IsType(err error, t ErrorType) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// IsTimeout reports whether err is a request that got no ack in time.
func IsTimeout(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeTimeout
}

// IsCodecError checks if an error came from encoding or decoding a payload.
func IsCodecError(err error) bool {
	return IsType(err, ErrorTypeCodec)
}

// IsStoreError checks if an error came from the cache store.
func IsStoreError(err error) bool {
	return IsType(err, ErrorTypeStore)
}

// IsValidationError checks if an error is validation-related.
func IsValidationError(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsTransportError checks if an error came from the socket transport.
func IsTransportError(err error) bool {
	return IsType(err, ErrorTypeTransport)
}

// WrapStore wraps err as a store error, passing nil through.
func WrapStore(err error, code, message string) error {
	if err == nil {
		return nil
	}

	return NewStoreError(code, message, err)
}

// WrapCodec wraps err as a codec error, passing nil through.
func WrapCodec(err error, code, message string) error {
	if err == nil {
		return nil
	}

	return NewCodecError(code, message, err)
}

// Is, As and New re-export the standard library helpers so callers only
// import one errors package.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Join re-exports errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
