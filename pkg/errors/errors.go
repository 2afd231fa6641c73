package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrGeneration         = errors.New("descriptor generation failed")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateSessionID = errors.New("session id already registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvariantViolation = errors.New("internal invariant violated")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidHash        = errors.New("invalid hash code")
	ErrNoClassification   = errors.New("no classification stored")
	ErrUnavailable        = errors.New("backend unavailable")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
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
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotFound), errors.Is(err, ErrNoClassification):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateSessionID):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidHash):
		return http.StatusBadRequest
	case errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
