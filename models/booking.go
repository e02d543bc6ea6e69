package models

import "time"

// Order is the booking submission payload.
type Order struct {
	Date             string         `json:"date"`
	TimeSlot         string         `json:"timeSlot"`
	PickupLocation   string         `json:"pickupLocation"`
	AdultCount       int            `json:"adultCount"`
	ChildCount       int            `json:"childCount"`
	AttractionIDs    []string       `json:"attractionIds"`
	FullName         string         `json:"fullName"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	Pricing          PriceBreakdown `json:"pricing"`
	Currency         string         `json:"currency"`
	ProviderIntentID string         `json:"paymentIntentId"`
	IdempotencyKey   string         `json:"idempotencyKey,omitempty"`
}

// NewOrder snapshots the selection together with its computed price.
func NewOrder(sel Selection, price PriceBreakdown, currency, providerIntentID string) Order {
	ids := make([]string, len(sel.AttractionIDs))
	copy(ids, sel.AttractionIDs)
	return Order{
		Date:             sel.Date,
		TimeSlot:         sel.TimeSlot,
		PickupLocation:   sel.PickupLocation,
		AdultCount:       sel.AdultCount,
		ChildCount:       sel.ChildCount,
		AttractionIDs:    ids,
		FullName:         sel.Contact.FullName,
		Email:            sel.Contact.Email,
		Phone:            sel.Contact.PhonePrefix + sel.Contact.PhoneNumber,
		Pricing:          price,
		Currency:         currency,
		ProviderIntentID: providerIntentID,
	}
}

// BookingRecord is the durable booking created by the booking store.
type BookingRecord struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName,omitempty"`
	Email      string `json:"email,omitempty"`
	EmailSent  bool   `json:"emailSent"`
	EmailError string `json:"emailError,omitempty"`
}

// EmailWarningKind buckets email delivery failures for user-facing text.
type EmailWarningKind string

const (
	EmailSenderDomainUnverified EmailWarningKind = "sender_domain_unverified"
	EmailNoDestination          EmailWarningKind = "no_destination"
	EmailGeneric                EmailWarningKind = "generic"
)

// EmailWarning is advisory; the booking is still successful.
type EmailWarning struct {
	Kind    EmailWarningKind `json:"kind"`
	Message string           `json:"message"`
	Detail  string           `json:"detail,omitempty"`
}

// BookingResult is a confirmed booking plus an optional email advisory.
type BookingResult struct {
	Record       BookingRecord `json:"booking"`
	EmailWarning *EmailWarning `json:"emailWarning,omitempty"`
	Attempts     int           `json:"attempts"`
	CompletedAt  time.Time     `json:"completedAt"`
}
