package errors

import (
	"context"
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// ErrorType represents the stage-level kind of a failure
type ErrorType string

const (
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeHTTP      ErrorType = "http"
	ErrorTypeDecode    ErrorType = "decode"
	ErrorTypeEncode    ErrorType = "encode"
	ErrorTypeProvider  ErrorType = "provider"
	ErrorTypeStorage   ErrorType = "storage"
	ErrorTypeCanceled  ErrorType = "canceled"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeParsing   ErrorType = "parsing"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Run-level helpers re-exported from cockroachdb/errors so callers only
// import this package.
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	GetAllHints = crdb.GetAllHints
	Is          = crdb.Is
	As          = crdb.As
)

// Error is a typed failure carried through the pipeline. Code holds the HTTP
// status for http, auth, rate_limit and provider errors.
type Error struct {
	Type      ErrorType
	Message   string
	Code      int
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Code > 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind renders the type with its status code, e.g. "http(404)"
func (e *Error) Kind() string {
	if e.Type == ErrorTypeHTTP && e.Code > 0 {
		return fmt.Sprintf("%s(%d)", e.Type, e.Code)
	}
	return string(e.Type)
}

// NewNetwork creates a transport-level error. Transient marks timeouts and
// connection resets that may succeed on a second attempt.
func NewNetwork(message string, err error, transient bool) *Error {
	return &Error{Type: ErrorTypeNetwork, Message: message, Transient: transient, Err: err}
}

// NewHTTP creates an error for a non-2xx response.
func NewHTTP(status int, message string) *Error {
	return &Error{Type: ErrorTypeHTTP, Message: message, Code: status}
}

func NewDecode(message string, err error) *Error {
	return &Error{Type: ErrorTypeDecode, Message: message, Err: err}
}

func NewEncode(message string, err error) *Error {
	return &Error{Type: ErrorTypeEncode, Message: message, Err: err}
}

func NewStorage(message string, err error) *Error {
	return &Error{Type: ErrorTypeStorage, Message: message, Err: err}
}

func NewCanceled(err error) *Error {
	return &Error{Type: ErrorTypeCanceled, Message: "processing canceled", Err: err}
}

// NewProvider wraps a search failure. The code of a typed cause is kept.
func NewProvider(message string, err error) *Error {
	e := &Error{Type: ErrorTypeProvider, Message: message, Err: err}
	var cause *Error
	if As(err, &cause) {
		e.Code = cause.Code
	}
	return e
}

// FromContext maps a context error to a canceled error, or nil.
func FromContext(ctx context.Context) *Error {
	if err := ctx.Err(); err != nil {
		return NewCanceled(err)
	}
	return nil
}

// TypeOf returns the type of the first typed error in the chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether the chain contains a typed error of type t.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// IsRetryable reports whether err is a typed error flagged transient.
func IsRetryable(err error) bool {
	var e *Error
	if As(err, &e) {
		return e.Transient
	}
	return false
}

// IsRetryableStatusCode checks if an HTTP status code from the search
// provider indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 429: // Too Many Requests
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}

// Classify returns the first typed error in the chain, or wraps err as an
// unknown error. It returns nil for a nil err.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if As(err, &e) {
		return e
	}
	return &Error{Type: ErrorTypeUnknown, Message: "unclassified failure", Err: err}
}
