package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	KindInternal            Kind = "internal"

	// Kinds raised while talking to the fulfillment provider.
	KindUnauthorized       Kind = "unauthorized"
	KindAlreadyInSystem    Kind = "already_in_system"
	KindAcknowledgement    Kind = "acknowledgement"
	KindInvalidFieldValues Kind = "invalid_field_values"
	KindUpstream           Kind = "upstream"
)

// AppError captures rich error context shared across transports.
type AppError struct {
	kind     Kind
	message  string
	details  map[string]any
	cause    error
	response string
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(appErr *AppError) {
		appErr.cause = err
	}
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(appErr *AppError) {
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		appErr.details[key] = value
	}
}

// WithResponse keeps the raw provider response body verbatim.
func WithResponse(body string) Option {
	return func(appErr *AppError) {
		appErr.response = body
	}
}

// New constructs a new AppError with the supplied kind and message.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	appErr := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(appErr)
	}
	return appErr
}

// Error satisfies the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Message returns the human-readable message.
func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns optional metadata about the error.
func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// Response returns the raw provider body the error was classified from.
func (e *AppError) Response() string {
	if e == nil {
		return ""
	}
	return e.response
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindAlreadyInSystem:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnprocessableEntity, KindInvalidFieldValues:
		return http.StatusUnprocessableEntity
	case KindUnauthorized, KindAcknowledgement, KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the error kind onto a gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if e == nil {
		return codes.Internal
	}
	switch e.kind {
	case KindBadRequest, KindInvalidFieldValues:
		return codes.InvalidArgument
	case KindAlreadyInSystem:
		return codes.AlreadyExists
	case KindNotFound:
		return codes.NotFound
	case KindUnprocessableEntity, KindAcknowledgement:
		return codes.FailedPrecondition
	case KindUnauthorized:
		return codes.Unauthenticated
	case KindUpstream:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// BadRequest constructs a 400 error.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// NotFound constructs a 404 error.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Unprocessable constructs a 422 error.
func Unprocessable(message string, opts ...Option) *AppError {
	return New(KindUnprocessableEntity, message, opts...)
}

// Internal constructs a generic 500 error.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// Unauthorized reports rejected or unobtainable provider credentials.
func Unauthorized(message string, opts ...Option) *AppError {
	if message == "" {
		message = "Invalid access token. Verify your credentials."
	}
	return New(KindUnauthorized, message, opts...)
}

// AlreadyInSystem reports an order the provider already holds.
func AlreadyInSystem(orderNumber, response string, opts ...Option) *AppError {
	opts = append([]Option{WithResponse(response), WithDetail("order_number", orderNumber)}, opts...)
	return New(KindAlreadyInSystem, fmt.Sprintf("Order %s already in the fulfillment system.", orderNumber), opts...)
}

// Acknowledgement reports submission errors listed in an acknowledgement.
func Acknowledgement(response string, opts ...Option) *AppError {
	opts = append([]Option{WithResponse(response)}, opts...)
	return New(KindAcknowledgement, "Acknowledgement error.", opts...)
}

// InvalidFieldValues reports a request the provider rejected field by field.
func InvalidFieldValues(description, response string, opts ...Option) *AppError {
	if description == "" {
		description = "Invalid values for some field(s). Check API response for details."
	}
	opts = append([]Option{WithResponse(response)}, opts...)
	return New(KindInvalidFieldValues, description, opts...)
}

// Upstream constructs the generic provider failure.
func Upstream(message, response string, opts ...Option) *AppError {
	opts = append([]Option{WithResponse(response)}, opts...)
	return New(KindUpstream, message, opts...)
}

// From returns an AppError for any error input, wrapping unexpected values.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.kind == kind
}
