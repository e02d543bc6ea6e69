package booking

import (
	"errors"
	"fmt"
)

// ErrMissingPayment is returned when an order has no confirmed payment reference.
var ErrMissingPayment = errors.New("booking: order has no payment reference")

// AmbiguousOutcomeError means the payment went through but the booking could
// not be confirmed from the response. It is never retried automatically:
// the booking may already exist.
type AmbiguousOutcomeError struct {
	PaymentReference string
	Reason           string
	Err              error
}

func (e *AmbiguousOutcomeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("booking outcome unknown for payment %s: %s: %v", e.PaymentReference, e.Reason, e.Err)
	}
	return fmt.Sprintf("booking outcome unknown for payment %s: %s", e.PaymentReference, e.Reason)
}

func (e *AmbiguousOutcomeError) Unwrap() error {
	return e.Err
}

// UserMessage tells the customer not to pay again and to contact support.
func (e *AmbiguousOutcomeError) UserMessage() string {
	return fmt.Sprintf("Your payment was received but we could not confirm your booking. "+
		"Please do not pay again. Contact support and quote payment reference %s.", e.PaymentReference)
}
