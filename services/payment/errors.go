package payment

import (
	"errors"
	"fmt"

	"daypass/services/backend"
)

var (
	// ErrInvalidAmount is returned when there is nothing to authorize.
	ErrInvalidAmount = errors.New("payment: amount must be positive")

	// ErrNotReady is returned when an authorization is needed but none is held.
	ErrNotReady = errors.New("payment: no active authorization")

	// ErrNotConfirmed is returned when the provider does not report the payment as succeeded.
	ErrNotConfirmed = errors.New("payment: payment not confirmed")
)

// InitError means the authorization could not be created. It is distinct
// from a failed payment: no money moved and the user may retry.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("payment initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// UserMessage explains the failure and offers the retry action.
func (e *InitError) UserMessage() string {
	var te *backend.TransportError
	if errors.As(e.Err, &te) {
		return "We could not prepare the payment form. " + te.UserMessage()
	}
	var re *backend.RejectionError
	if errors.As(e.Err, &re) {
		return "We could not prepare the payment form: " + re.UserMessage() + " Please retry."
	}
	return "We could not prepare the payment form. Please retry."
}

// ConfirmationError is a payment that did not go through on the provider side.
type ConfirmationError struct {
	Status  string
	Message string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("payment not confirmed (status %s): %s", e.Status, e.Message)
}

func (e *ConfirmationError) Unwrap() error {
	return ErrNotConfirmed
}

func (e *ConfirmationError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "Your payment was not completed. No booking was made."
}

// VerificationError means the provider could not be asked whether a
// confirmed payment succeeded. Nothing was submitted; confirming again is safe.
type VerificationError struct {
	IntentID string
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify payment %s: %v", e.IntentID, e.Err)
}

func (e *VerificationError) Unwrap() []error {
	return []error{backend.ErrTransport, e.Err}
}

func (e *VerificationError) UserMessage() string {
	return "We could not check your payment with the provider. No booking was made yet and you will not be charged twice. Please confirm again in a moment."
}
