package models

import "github.com/shopspring/decimal"

// Attraction is an optional add-on sold per passenger.
type Attraction struct {
	DisplayName string          `json:"displayName" bson:"display_name"`
	UnitPrice   decimal.Decimal `json:"unitPrice" bson:"unit_price"`
}

// PriceTable is the price list loaded once per session.
// BasePriceChild is nil when the table does not carry an explicit child price.
type PriceTable struct {
	BasePriceAdult      decimal.Decimal       `json:"basePriceAdult"`
	BasePriceChild      *decimal.Decimal      `json:"basePriceChild,omitempty"`
	GuidedTourSurcharge decimal.Decimal       `json:"guidedTourSurcharge"`
	Attractions         map[string]Attraction `json:"attractions"`
}

// ChildPriceRatio is applied to the adult price when the table has no child price.
var ChildPriceRatio = decimal.NewFromFloat(0.6)

// ChildPrice returns the explicit child price or the documented 60% fallback.
func (t PriceTable) ChildPrice() (price decimal.Decimal, fallback bool) {
	if t.BasePriceChild != nil {
		return *t.BasePriceChild, false
	}
	return t.BasePriceAdult.Mul(ChildPriceRatio), true
}

// PriceBreakdown is the computed order total. Values are unrounded.
type PriceBreakdown struct {
	AdultTotal       decimal.Decimal `json:"adultTotal"`
	ChildTotal       decimal.Decimal `json:"childTotal"`
	GuidedTourTotal  decimal.Decimal `json:"guidedTourTotal"`
	AttractionsTotal decimal.Decimal `json:"attractionsTotal"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
}

// PriceDisplay is the 2-place rendering of a PriceBreakdown.
type PriceDisplay struct {
	AdultTotal       string `json:"adultTotal"`
	ChildTotal       string `json:"childTotal"`
	GuidedTourTotal  string `json:"guidedTourTotal"`
	AttractionsTotal string `json:"attractionsTotal"`
	GrandTotal       string `json:"grandTotal"`
}

// Display rounds every component to two places.
func (b PriceBreakdown) Display() PriceDisplay {
	return PriceDisplay{
		AdultTotal:       b.AdultTotal.StringFixed(2),
		ChildTotal:       b.ChildTotal.StringFixed(2),
		GuidedTourTotal:  b.GuidedTourTotal.StringFixed(2),
		AttractionsTotal: b.AttractionsTotal.StringFixed(2),
		GrandTotal:       b.GrandTotal.StringFixed(2),
	}
}

// MinorUnits converts the grand total to cents for the payment provider.
func (b PriceBreakdown) MinorUnits() int64 {
	return b.GrandTotal.Shift(2).Round(0).IntPart()
}
