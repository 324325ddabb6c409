// Package result provides the uniform success/failure envelope returned by the
// balance gateway, the order saga, and the HTTP surface.
package result

import (
	"net/http"
	"strings"
)

// DefaultErrorMessage is used when a failure is constructed without any message.
const DefaultErrorMessage = "An unexpected error occurred"

// Result carries either a payload or a failure status plus one or more messages.
type Result[T any] struct {
	Data          T        `json:"data"`
	ErrorMessages []string `json:"errorMessages"`
	IsSuccessful  bool     `json:"isSuccessful"`
	StatusCode    int      `json:"statusCode"`
}

// Succeed wraps data in a successful result.
func Succeed[T any](data T) Result[T] {
	return Result[T]{Data: data, IsSuccessful: true, StatusCode: http.StatusOK}
}

// Failure builds an unsuccessful result. Statuses below 400 are coerced to 500
// and blank messages are dropped; an empty list falls back to DefaultErrorMessage.
func Failure[T any](status int, messages ...string) Result[T] {
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	cleaned := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg = strings.TrimSpace(msg); msg != "" {
			cleaned = append(cleaned, msg)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultErrorMessage)
	}
	return Result[T]{ErrorMessages: cleaned, StatusCode: status}
}

// Propagate re-types a failed result, keeping its status and messages.
func Propagate[T, U any](r Result[U]) Result[T] {
	if r.IsSuccessful {
		return Failure[T](http.StatusInternalServerError, "cannot propagate a successful result as a failure")
	}
	return Failure[T](r.StatusCode, r.ErrorMessages...)
}

// Message joins the error messages into a single line.
func (r Result[T]) Message() string {
	return strings.Join(r.ErrorMessages, "; ")
}

// Err exposes a failed result as an error value; it is nil on success.
func (r Result[T]) Err() error {
	if r.IsSuccessful {
		return nil
	}
	return &Error{StatusCode: r.StatusCode, Messages: append([]string(nil), r.ErrorMessages...)}
}

// Error is the error form of a failed result.
type Error struct {
	StatusCode int
	Messages   []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "; ")
}
