// Package apperror defines the error taxonomy shared by services and handlers.
// Every error that reaches a client carries a stable Reason code and a
// human-readable Message.
package apperror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
	KindRateLimited
)

// Reason codes
const (
	ReasonInvalidPayload         = "INVALID_PAYLOAD"
	ReasonEmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	ReasonInvalidCredentials     = "INVALID_CREDENTIALS"
	ReasonMissingToken           = "MISSING_TOKEN"
	ReasonInvalidOrExpired       = "INVALID_OR_EXPIRED"
	ReasonUserNotFound           = "USER_NOT_FOUND"
	ReasonNoFieldsToUpdate       = "NO_FIELDS_TO_UPDATE"
	ReasonInvalidEmail           = "INVALID_EMAIL"
	ReasonEmailInUse             = "EMAIL_IN_USE"
	ReasonInvalidResetToken      = "INVALID_RESET_TOKEN"
	ReasonInvalidItems           = "INVALID_ITEMS"
	ReasonProductNotFound        = "PRODUCT_NOT_FOUND"
	ReasonInsufficientStock      = "INSUFFICIENT_STOCK"
	ReasonOrderConflict          = "ORDER_CONFLICT"
	ReasonUserMismatch           = "USER_MISMATCH"
	ReasonStoreUnavailable       = "STORE_UNAVAILABLE"
	ReasonRateLimited            = "RATE_LIMITED"
	ReasonInternal               = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Details any
	// Status overrides the kind's default HTTP status when non-zero.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Reason + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Reason so sentinels survive WithDetails/Wrap copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

// WithDetails returns a copy carrying client-visible details.
func (e *Error) WithDetails(d any) *Error {
	cp := *e
	cp.Details = d
	return &cp
}

// Wrap returns a copy that keeps err as its cause (never rendered to clients).
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithStatus returns a copy rendered with an endpoint-specific HTTP status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

// HTTPStatus maps the error to a response status.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func Validation(reason, message string) *Error  { return New(KindValidation, reason, message) }
func Auth(reason, message string) *Error        { return New(KindAuth, reason, message) }
func Forbidden(reason, message string) *Error   { return New(KindForbidden, reason, message) }
func NotFound(reason, message string) *Error    { return New(KindNotFound, reason, message) }
func Conflict(reason, message string) *Error    { return New(KindConflict, reason, message) }
func Unavailable(reason, message string) *Error { return New(KindUnavailable, reason, message) }

// Internal wraps an unexpected failure; the cause is logged, never rendered.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: "unexpected error", Err: err}
}

// From extracts an *Error from err, falling back to Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// HasReason reports whether err carries the given reason code.
func HasReason(err error, reason string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Reason == reason
}
