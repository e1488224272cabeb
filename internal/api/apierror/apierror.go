// Package apierror defines the JSON error envelope returned by the HTTP API.
package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const RequestIDKey = "request_id"

type Error struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

func newError(code int, message string, detail error) *Error {
	e := &Error{Code: code, Message: message}
	if detail != nil {
		e.Detail = detail.Error()
	}
	return e
}

func BadRequest(detail error) *Error {
	return newError(http.StatusBadRequest, "bad request", detail)
}

func Unauthorized() *Error {
	return newError(http.StatusUnauthorized, "unauthorized", nil)
}

func NotFound(detail error) *Error {
	return newError(http.StatusNotFound, "not found", detail)
}

func Conflict(detail error) *Error {
	return newError(http.StatusConflict, "conflict", detail)
}

// Internal hides the cause from the client; it is logged by the request logger.
func Internal(cause error) *Error {
	e := newError(http.StatusInternalServerError, "internal error", nil)
	e.cause = cause
	return e
}

func Unavailable(detail error) *Error {
	return newError(http.StatusServiceUnavailable, "service unavailable", detail)
}

// Abort writes e with the request id and stops the handler chain. The cause,
// if any, is attached to the gin context for logging.
func Abort(c *gin.Context, e *Error) {
	if id, ok := c.Get(RequestIDKey); ok {
		e.RequestID, _ = id.(string)
	}
	if e.cause != nil {
		_ = c.Error(e.cause)
	} else {
		_ = c.Error(errors.New(e.Error()))
	}
	c.AbortWithStatusJSON(e.Code, e)
}
