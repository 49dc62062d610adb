package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code identifies an error class shared between services and API responses.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeAlreadyProcessed  Code = "ALREADY_PROCESSED"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata carries the HTTP mapping for a code. DetailsAllowed gates whether
// structured details may reach the client; PublicMessage is the fallback text
// for codes whose internal messages must not leak.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, retryable bool, message string, detailsAllowed bool) Metadata {
	return Metadata{
		HTTPStatus:     status,
		Retryable:      retryable,
		PublicMessage:  message,
		DetailsAllowed: detailsAllowed,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, false, "validation failed", true),
	CodeUnauthorized:      meta(http.StatusUnauthorized, false, "authentication required", false),
	CodeForbidden:         meta(http.StatusForbidden, false, "access denied", false),
	CodeNotFound:          meta(http.StatusNotFound, false, "resource not found", false),
	CodeConflict:          meta(http.StatusConflict, false, "conflict detected", false),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, false, "state transition disallowed", true),
	CodeAlreadyProcessed:  meta(http.StatusConflict, false, "already processed", true),
	CodeInsufficientStock: meta(http.StatusUnprocessableEntity, false, "insufficient stock", true),
	CodeInsufficientFunds: meta(http.StatusUnprocessableEntity, false, "insufficient funds", true),
	CodeIdempotency:       meta(http.StatusConflict, false, "idempotency key reused", true),
	CodeInternal:          meta(http.StatusInternalServerError, true, "internal server error", false),
	CodeDependency:        meta(http.StatusServiceUnavailable, true, "dependency unavailable", true),
}

// MetadataFor returns the HTTP mapping for code. Unknown codes map to
// internal so a missing table entry can never leak a 2xx or raw message.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional wrapped cause and client details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches structured context for the client. Only rendered when
// the code's metadata allows details.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the outermost typed error from err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries the given typed code anywhere in its chain.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
