package errors

import (
	"context"
)

// Common error codes.
const (
	ErrCodeEncode          = "ERR_ENCODE"
	ErrCodeDecode          = "ERR_DECODE"
	ErrCodeCacheRead       = "ERR_CACHE_READ"
	ErrCodeCacheWrite      = "ERR_CACHE_WRITE"
	ErrCodeCacheMalformed  = "ERR_CACHE_MALFORMED"
	ErrCodeStoreClosed     = "ERR_STORE_CLOSED"
	ErrCodeUnknownDriver   = "ERR_UNKNOWN_DRIVER"
	ErrCodeNoHandler       = "ERR_NO_HANDLER"
	ErrCodeMissingAck      = "ERR_MISSING_ACK"
	ErrCodeAckSent         = "ERR_ACK_ALREADY_SENT"
	ErrCodeBadEventName    = "ERR_BAD_EVENT_NAME"
	ErrCodeReadOnly        = "ERR_READ_ONLY"
	ErrCodeUnknownKind     = "ERR_UNKNOWN_KIND"
	ErrCodeDuplicateWidget = "ERR_DUPLICATE_WIDGET"
	ErrCodeWidgetNotFound  = "ERR_WIDGET_NOT_FOUND"
	ErrCodeInvalidValue    = "ERR_INVALID_VALUE"
	ErrCodeInvalidOrigin   = "ERR_INVALID_ORIGIN"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeConnClosed      = "ERR_CONNECTION_CLOSED"
	ErrCodeTimeout         = "ERR_TIMEOUT"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeLayoutInvalid   = "ERR_LAYOUT_INVALID"
)

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level chosen by its type. Recoverable errors
// (bad payloads, unknown events) are warnings; everything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SyncError
	if !As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")

		return
	}

	fields := []interface{}{
		"type", se.Type,
		"code", se.Code,
	}
	if se.WidgetID != "" {
		fields = append(fields, "widget", se.WidgetID)
	}
	if se.Event != "" {
		fields = append(fields, "event", se.Event)
	}

	if se.Recoverable {
		h.logger.Warn(ctx, err, "Recoverable error occurred", fields...)

		return
	}
	h.logger.Error(ctx, err, "Error occurred", fields...)
}
