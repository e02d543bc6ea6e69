package pricing

import (
	"daypass/models"

	"github.com/shopspring/decimal"
)

// Calculator computes order totals. It holds only the set of guided slots.
type Calculator struct {
	guided map[string]struct{}
}

// NewCalculator returns a calculator treating the given time slots as guided.
func NewCalculator(guidedSlots []string) *Calculator {
	g := make(map[string]struct{}, len(guidedSlots))
	for _, s := range guidedSlots {
		g[s] = struct{}{}
	}
	return &Calculator{guided: g}
}

// IsGuided reports whether the slot carries the guided-tour surcharge.
func (c *Calculator) IsGuided(slot string) bool {
	_, ok := c.guided[slot]
	return ok
}

// ComputeTotal prices a selection against a table. It is pure: only counts,
// time slot and attractions are read, and nothing is rounded.
func (c *Calculator) ComputeTotal(table models.PriceTable, sel models.Selection) models.PriceBreakdown {
	adults := decimal.NewFromInt(int64(sel.AdultCount))
	children := decimal.NewFromInt(int64(sel.ChildCount))
	passengers := decimal.NewFromInt(int64(sel.Passengers()))
	childPrice, _ := table.ChildPrice()

	b := models.PriceBreakdown{
		AdultTotal:       table.BasePriceAdult.Mul(adults),
		ChildTotal:       childPrice.Mul(children),
		GuidedTourTotal:  decimal.Zero,
		AttractionsTotal: decimal.Zero,
	}
	if c.IsGuided(sel.TimeSlot) {
		b.GuidedTourTotal = table.GuidedTourSurcharge.Mul(passengers)
	}
	for _, id := range sel.AttractionIDs {
		a, ok := table.Attractions[id]
		if !ok {
			continue
		}
		b.AttractionsTotal = b.AttractionsTotal.Add(a.UnitPrice.Mul(passengers))
	}
	b.GrandTotal = b.AdultTotal.Add(b.ChildTotal).Add(b.GuidedTourTotal).Add(b.AttractionsTotal)
	return b
}

// UnknownAttractions lists selected ids the table does not price.
func UnknownAttractions(table models.PriceTable, sel models.Selection) []string {
	var out []string
	for _, id := range sel.AttractionIDs {
		if _, ok := table.Attractions[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
