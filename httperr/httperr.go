// Package httperr carries typed request errors from handlers to a single
// responder middleware so every failure renders the same JSON shape:
// {"success": false, "statusCode": <code>, "message": <message>}.
package httperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Error struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func New(statusCode int, message string) *Error {
	return &Error{StatusCode: statusCode, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, message)
}

// Abort records err on the context and stops the handler chain. The
// Responder middleware turns it into the JSON error response.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Responder renders the last error recorded on the context. Anything that
// is not an *Error is treated as unexpected and reported as a 500.
func Responder() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last().Err

		var httpErr *Error
		if !errors.As(last, &httpErr) {
			log.Printf("unexpected error on %s %s: %v", c.Request.Method, c.Request.URL.Path, last)
			httpErr = Internal("Internal Server Error")
		}

		c.JSON(httpErr.StatusCode, gin.H{
			"success":    false,
			"statusCode": httpErr.StatusCode,
			"message":    httpErr.Message,
		})
	}
}
