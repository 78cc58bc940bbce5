// Package errors defines the sentinel errors of the search engine and an
// AppError wrapper that carries an HTTP status code across layer boundaries.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedRecord marks a catalog record missing its URL key. The
	// record is skipped; index construction continues over the rest.
	ErrMalformedRecord = errors.New("malformed catalog record")
	// ErrEmptyCorpus is returned when index construction finds no usable
	// records at all.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrIndexNotBuilt is returned for queries attempted before the index
	// store has been built or loaded.
	ErrIndexNotBuilt = errors.New("index not built")
	ErrInvalidInput  = errors.New("invalid input")
	ErrHistorySink   = errors.New("history sink unavailable")
	ErrTimeout       = errors.New("operation timed out")
	ErrInternal      = errors.New("internal error")
)

// AppError pairs a sentinel with a human-readable message and the HTTP
// status to report.
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

// HTTPStatusCode maps an error to the status code the query API should
// return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotBuilt), errors.Is(err, ErrEmptyCorpus),
		errors.Is(err, ErrTimeout), errors.Is(err, ErrHistorySink):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
