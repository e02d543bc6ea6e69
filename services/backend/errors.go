package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks failures where no well-formed answer was received.
	ErrTransport = errors.New("backend: transport error")

	// ErrRejected marks well-formed failure responses.
	ErrRejected = errors.New("backend: request rejected")
)

// TransportError covers unreachable hosts, timeouts, non-2xx statuses and
// bodies that are not JSON. A 404 means the backend is still starting up and
// a 429 means its quota is exhausted; both are worth retrying shortly.
type TransportError struct {
	Op            string
	StatusCode    int
	Initializing  bool
	QuotaExceeded bool
	Err           error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// UserMessage is the text shown to the customer.
func (e *TransportError) UserMessage() string {
	switch {
	case e.Initializing:
		return "The booking system is starting up. Please retry in a few moments."
	case e.QuotaExceeded:
		return "The booking system is busy right now. Please retry in a few moments."
	default:
		return "We could not reach the booking system. Please check your connection and retry."
	}
}

// RejectionError is a well-formed failure answer such as unavailable seats or
// failed validation. It is terminal for the request that produced it.
type RejectionError struct {
	Op      string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: rejected: %s", e.Op, e.Message)
}

func (e *RejectionError) Unwrap() error {
	return ErrRejected
}

// UserMessage returns the backend's message verbatim.
func (e *RejectionError) UserMessage() string {
	if e.Message == "" {
		return "The booking system declined the request."
	}
	return e.Message
}

// IsTransport reports whether err is a transport-kind failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsRejection reports whether err is a well-formed rejection.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRejected)
}
