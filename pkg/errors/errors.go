// Package errors defines the sentinel errors shared by the engine, the
// corpus loader and the HTTP surface, plus an AppError carrying an HTTP
// status. Sentinels act as tags: callers classify with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrOutOfRange      = errors.New("document id out of range")
	ErrNotFound        = errors.New("not found")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotReady        = errors.New("index not ready")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrTimeout         = errors.New("request timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusNotImplemented
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
