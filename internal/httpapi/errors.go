package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/mailer"
	"github.com/dmitrymomot/postbox/pkg/reminder"
	"github.com/dmitrymomot/postbox/pkg/validator"
)

// HTTPError is an error with everything needed to render a JSON error body.
type HTTPError struct {
	// Err is the underlying error. It is logged, never rendered.
	Err error `json:"-"`

	// Fields holds per-field validation messages.
	Fields map[string]string `json:"fields,omitempty"`

	Message   string `json:"message"`
	ErrorCode string `json:"code"`
	RequestID string `json:"requestId,omitempty"`

	Code int `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates an HTTPError with the given status code and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{
		Code:      code,
		Message:   message,
		ErrorCode: errorCode(code),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		if code != "" {
			e.ErrorCode = code
		}
	}
}

func WithFields(fields map[string]string) HTTPErrorOption {
	return func(e *HTTPError) {
		if len(fields) > 0 {
			e.Fields = fields
		}
	}
}

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, opts...)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message, opts...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, opts...)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, message, opts...)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, opts...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message, opts...)
}

// AsHTTPError converts any error into an HTTPError.
// Invalid requests map to 400, unknown ids to 404, timeouts to 503 and
// everything else to 500.
func AsHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	switch {
	case errors.Is(err, delivery.ErrInvalidRequest), errors.Is(err, reminder.ErrInvalidRequest):
		return ErrBadRequest("invalid request",
			WithError(err),
			WithErrorCode("invalid_request"),
			WithFields(validationFields(err)),
		)
	case errors.Is(err, delivery.ErrNotFound), errors.Is(err, reminder.ErrNotFound):
		return ErrNotFound("not found", WithError(err))
	case errors.Is(err, mailer.ErrInvalidSignature):
		return ErrUnauthorized("invalid webhook signature", WithError(err))
	case errors.Is(err, mailer.ErrInvalidWebhook):
		return ErrBadRequest("invalid webhook payload", WithError(err))
	case errors.Is(err, context.DeadlineExceeded):
		return ErrServiceUnavailable("request timed out", WithError(err), WithErrorCode("timeout"))
	}
	return ErrInternal("internal error", WithError(err))
}

func validationFields(err error) map[string]string {
	var verrs validator.Errors
	if errors.As(err, &verrs) {
		return verrs.Fields()
	}
	return nil
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	return "internal"
}
