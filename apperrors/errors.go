package apperrors

import (
	"fmt"
	"net/http"
)

// Error represents an application error with an HTTP status code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of base carrying err as its cause.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

// Gateway error taxonomy. Checkout-path errors surface to the caller;
// reconciliation-path errors stay in logs.
var (
	ErrOrderNotFound = New(http.StatusNotFound, "Order not found", nil)
	ErrInvalidRate   = New(http.StatusInternalServerError, "Exchange rate is zero or negative", nil)
	ErrRateConfig    = New(http.StatusInternalServerError, "No usable exchange rate configured", nil)
	ErrUnauthorized  = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden     = New(http.StatusForbidden, "Forbidden", nil)
	ErrInternal      = New(http.StatusInternalServerError, "Internal server error", nil)
)
