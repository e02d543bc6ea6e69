package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FollowUpState tracks the manual follow-up of an ambiguous booking.
type FollowUpState string

const (
	FollowUpOpen               FollowUpState = "open"
	FollowUpPaymentCaptured    FollowUpState = "payment_captured"
	FollowUpPaymentNotCaptured FollowUpState = "payment_not_captured"
)

// FollowUp records a paid checkout whose booking could not be confirmed.
type FollowUp struct {
	ID               string          `bson:"_id" json:"id"`
	SessionID        string          `bson:"session_id" json:"sessionId"`
	ProviderIntentID string          `bson:"provider_intent_id" json:"providerIntentId"`
	Amount           decimal.Decimal `bson:"-" json:"amount"`
	AmountMinor      int64           `bson:"amount_minor" json:"-"`
	Currency         string          `bson:"currency" json:"currency"`
	Contact          Contact         `bson:"contact" json:"contact"`
	Date             string          `bson:"date" json:"date"`
	TimeSlot         string          `bson:"time_slot" json:"timeSlot"`
	Reason           string          `bson:"reason" json:"reason"`
	ProviderStatus   string          `bson:"provider_status,omitempty" json:"providerStatus,omitempty"`
	State            FollowUpState   `bson:"state" json:"state"`
	Note             string          `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt        time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updatedAt"`
}
