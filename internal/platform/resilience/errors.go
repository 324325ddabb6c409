package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned without calling the remote service while the breaker is open or probing.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrBulkheadRejected is returned when both the concurrency slots and the queue are full.
	ErrBulkheadRejected = errors.New("bulkhead capacity exhausted")
	// ErrMalformedResponse marks a response body that does not match the expected contract.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrAttemptTimeout marks a single attempt that exceeded its time budget.
	ErrAttemptTimeout = errors.New("attempt timed out")
)

// RemoteError is a non-2xx answer from the remote service.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote status %d: %s", e.StatusCode, e.Message)
}

// Outcome classifies how a pipeline execution ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeTransport   Outcome = "transport"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeClientError Outcome = "client_error"
	OutcomeServerError Outcome = "server_error"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeCircuitOpen Outcome = "circuit_open"
	OutcomeRejected    Outcome = "rejected"
	OutcomeCanceled    Outcome = "canceled"
)

// Classify maps an execution error onto an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var remote *RemoteError
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.Is(err, ErrBulkheadRejected):
		return OutcomeRejected
	case errors.Is(err, ErrMalformedResponse):
		return OutcomeMalformed
	case errors.As(err, &remote):
		if remote.StatusCode >= http.StatusInternalServerError {
			return OutcomeServerError
		}
		return OutcomeClientError
	case errors.Is(err, ErrAttemptTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeTransport
	}
}

// Retryable reports whether another attempt may succeed.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeTransport, OutcomeTimeout, OutcomeServerError:
		return true
	default:
		return false
	}
}
