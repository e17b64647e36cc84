package apperrors

import (
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

// Is matches sentinel errors by code and message so wrapped copies still
// compare equal to the sentinel they were made from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error types
var (
	ErrUnauthorized    = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrNotFound        = New(http.StatusNotFound, "Not found", nil)
	ErrTooManyRequests = New(http.StatusTooManyRequests, "Rate limit exceeded", nil)
	ErrInternalServer  = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrBadGateway      = New(http.StatusBadGateway, "Upstream request failed", nil)
)

// Validation error types
var (
	ErrValidation = New(http.StatusUnprocessableEntity, "Validation error", nil)
)

// Business logic error types
var (
	ErrOutOfStock       = New(http.StatusConflict, "Product is out of stock", nil)
	ErrEmptyCart        = New(http.StatusUnprocessableEntity, "Cart is empty", nil)
	ErrPaymentFailed    = New(http.StatusPaymentRequired, "Payment failed", nil)
	ErrAuthInFlight     = New(http.StatusConflict, "Authentication already in progress", nil)
	ErrCheckoutInFlight = New(http.StatusConflict, "Checkout already in progress", nil)
)

// From converts any error into an *Error, defaulting to 500.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// ErrorMiddleware renders the last error attached to the gin context.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := From(c.Errors.Last().Err)
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		c.Abort()
	}
}
