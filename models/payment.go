package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// --- PaymentRequest & PaymentAuthorization ---
type PaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Idempotency string
	Metadata    map[string]string
	Description string
}

// PaymentAuthorization is one outstanding provider authorization for a fixed amount.
type PaymentAuthorization struct {
	ClientSecret     string          `json:"clientSecret"`
	ProviderIntentID string          `json:"providerIntentId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type PaymentState string

const (
	PaymentUninitialized PaymentState = "uninitialized"
	PaymentCreating      PaymentState = "creating"
	PaymentReady         PaymentState = "ready"
	PaymentError         PaymentState = "error"
)

// PaymentSnapshot is the persisted form of the payment intent manager.
type PaymentSnapshot struct {
	State         PaymentState          `json:"state"`
	Authorization *PaymentAuthorization `json:"authorization,omitempty"`
	Error         string                `json:"error,omitempty"`
	Attempts      int                   `json:"attempts"`
	// Superseded keeps replaced authorizations; a client may still confirm one.
	Superseded []PaymentAuthorization `json:"superseded,omitempty"`
}

// Find returns the current or a superseded authorization by provider id.
func (s PaymentSnapshot) Find(id string) *PaymentAuthorization {
	if s.Authorization != nil && s.Authorization.ProviderIntentID == id {
		a := *s.Authorization
		return &a
	}
	for i := range s.Superseded {
		if s.Superseded[i].ProviderIntentID == id {
			a := s.Superseded[i]
			return &a
		}
	}
	return nil
}

// ConfirmationStatus is the terminal state reported by the client-side confirmation call.
type ConfirmationStatus string

const (
	ConfirmationSucceeded      ConfirmationStatus = "succeeded"
	ConfirmationRequiresAction ConfirmationStatus = "requires_action"
	ConfirmationFailed         ConfirmationStatus = "error"
)

// PaymentConfirmation is what the client reports after confirming with the
// clientSecret of ProviderIntentID. An empty id means the current authorization.
type PaymentConfirmation struct {
	ProviderIntentID string             `json:"providerIntentId"`
	Status           ConfirmationStatus `json:"status"`
	Message          string             `json:"message,omitempty"`
}
