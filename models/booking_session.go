package models

import "time"

// Step is a wizard step, numbered from 1.
type Step int

const (
	StepDateTime Step = iota + 1
	StepPickupAndCount
	StepAddOns
	StepContactInfo
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepDateTime:
		return "date_time"
	case StepPickupAndCount:
		return "pickup_and_count"
	case StepAddOns:
		return "add_ons"
	case StepContactInfo:
		return "contact_info"
	case StepPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the five wizard steps.
func (s Step) Valid() bool {
	return s >= StepDateTime && s <= StepPayment
}

// CheckoutSession holds wizard state between requests.
type CheckoutSession struct {
	SessionID  string          `json:"sessionId"`
	Step       Step            `json:"step"`
	Selection  Selection       `json:"selection"`
	PriceTable PriceTable      `json:"priceTable"`
	Settings   Settings        `json:"settings"`
	Payment    PaymentSnapshot `json:"payment"`
	Submitting bool            `json:"submitting"`
	// SubmittingIntent is the authorization being booked while Submitting.
	SubmittingIntent string         `json:"submittingIntent,omitempty"`
	Booking          *BookingResult `json:"booking,omitempty"`
	// Unresolved is the payment reference of an ambiguous submission.
	Unresolved string    `json:"unresolved,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CheckoutView is what the API returns for a session.
type CheckoutView struct {
	SessionID    string          `json:"sessionId"`
	Step         Step            `json:"step"`
	StepName     string          `json:"stepName"`
	Selection    Selection       `json:"selection"`
	Totals       PriceDisplay    `json:"totals"`
	Settings     Settings        `json:"settings"`
	Availability SlotSeats       `json:"availability,omitempty"`
	Payment      PaymentSnapshot `json:"payment"`
	CanAdvance   bool            `json:"canAdvance"`
	Blocker      string          `json:"blocker,omitempty"`
	Submitting   bool            `json:"submitting"`
	Booking      *BookingResult  `json:"booking,omitempty"`
	Unresolved   string          `json:"unresolved,omitempty"`
}
