package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so a wrapped copy still
// satisfies errors.Is against the package-level sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Withf returns a copy of e with a formatted detail.
func (e *Error) Withf(format string, args ...any) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// As resolves err to an *Error, falling back to ErrInternalServer.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// Common error types
var (
	ErrBadRequest     = New(http.StatusBadRequest, "Bad request", nil)
	ErrNotFound       = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
)

// Database error types
var (
	ErrDatabaseQuery = New(http.StatusInternalServerError, "Database query error", nil)
	ErrLockTimeout   = New(http.StatusServiceUnavailable, "Row lock wait timed out, retry the operation", nil)
)

// Validation error types
var (
	ErrInvalidInput = New(http.StatusBadRequest, "Invalid input", nil)
)

// Business logic error types
var (
	ErrRecordNotFound          = New(http.StatusNotFound, "Record not found", nil)
	ErrInsufficientStock       = New(http.StatusConflict, "Insufficient stock", nil)
	ErrReservationInvalidState = New(http.StatusConflict, "Reservation is not pending", nil)
	ErrCreditLimitExceeded     = New(http.StatusUnprocessableEntity, "Order total exceeds available credit", nil)
	ErrInvalidStatusTransition = New(http.StatusConflict, "Invalid order status transition", nil)
	ErrInvariantViolation      = New(http.StatusInternalServerError, "Inventory invariant violated", nil)
)

// ErrorMiddleware renders the last gin error as JSON.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := As(c.Errors.Last().Err)
			c.JSON(appErr.Code, gin.H{"error": appErr.Message, "details": appErr.Error()})
			c.Abort()
		}
	}
}
