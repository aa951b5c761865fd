package dictionary

import (
	"errors"
	"fmt"
)

// Sentinels for matching with errors.Is. The typed errors below all match one of them.
var (
	ErrNotFound          = errors.New("no dictionary entry")
	ErrTransient         = errors.New("dictionary temporarily unavailable")
	ErrMalformedResponse = errors.New("malformed dictionary response")
	ErrRejected          = errors.New("dictionary request rejected")
	ErrCancelled         = errors.New("lookup cancelled")
)

// NotFoundError is an authoritative negative answer from the dictionary service.
type NotFoundError struct {
	Term string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNotFound, e.Term)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransientError is a timeout, connection failure or 5xx that may succeed on a later attempt.
type TransientError struct {
	Term       string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	msg := fmt.Sprintf("%s: %q", ErrTransient, e.Term)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// MalformedResponseError means the service answered with a payload that failed validation.
// Retrying reproduces the same payload, so it is never retried.
type MalformedResponseError struct {
	Term string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s for %q: %v", ErrMalformedResponse, e.Term, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// RejectedError is a client error status other than 404, typically a missing or invalid token.
type RejectedError struct {
	Term       string
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s for %q: status %d, body %s", ErrRejected, e.Term, e.StatusCode, e.Body)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// CancelledError reports a lookup abandoned by its caller, usually because a newer search superseded it.
type CancelledError struct {
	Term string
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: %q", ErrCancelled, e.Term)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
