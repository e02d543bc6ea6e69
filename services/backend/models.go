package backend

import "github.com/shopspring/decimal"

// baseEnvelope is the outer shape every backend answer shares.
type baseEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e baseEnvelope) errorText() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// PricingPayload is a possibly partial price table; nil fields keep defaults.
type PricingPayload struct {
	BasePriceAdult      *decimal.Decimal             `json:"basePriceAdult"`
	BasePriceChild      *decimal.Decimal             `json:"basePriceChild"`
	GuidedTourSurcharge *decimal.Decimal             `json:"guidedTourSurcharge"`
	Attractions         map[string]AttractionPayload `json:"attractions"`
}

type AttractionPayload struct {
	DisplayName string           `json:"displayName"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
}

type pricingResponse struct {
	baseEnvelope
	Pricing *PricingPayload `json:"pricing"`
}

type availabilityResponse struct {
	Availability map[string]int `json:"availability"`
}

type flagResponse struct {
	Enabled *bool `json:"enabled"`
}

// PaymentIntentRequest is the body of POST create-payment-intent.
// Amount is in minor units.
type PaymentIntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type paymentIntentResponse struct {
	baseEnvelope
	Data *PaymentIntent `json:"data"`
}

// BookingPayload is the booking object inside the inner envelope.
type BookingPayload struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	EmailSent  bool   `json:"emailSent"`
	EmailError string `json:"emailError"`
}

type bookingResponse struct {
	baseEnvelope
	Data *struct {
		baseEnvelope
		Booking *BookingPayload `json:"booking"`
	} `json:"data"`
}

// Layer is one level of the booking response envelope.
// Present is false when the success flag was missing altogether.
type Layer struct {
	Present bool
	OK      bool
	Error   string
}

// BookingEnvelope is the tagged form of the double-nested booking response.
// Transport failures never produce an envelope; they are returned as errors.
type BookingEnvelope struct {
	Outer   Layer
	Inner   Layer
	Booking *BookingPayload
}

func layerOf(e baseEnvelope) Layer {
	if e.Success == nil {
		return Layer{Error: e.errorText()}
	}
	return Layer{Present: true, OK: *e.Success, Error: e.errorText()}
}

func (r bookingResponse) envelope() BookingEnvelope {
	env := BookingEnvelope{Outer: layerOf(r.baseEnvelope)}
	if r.Data != nil {
		env.Inner = layerOf(r.Data.baseEnvelope)
		env.Booking = r.Data.Booking
	}
	return env
}
