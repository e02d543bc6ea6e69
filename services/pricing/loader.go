package pricing

import (
	"context"

	"daypass/models"
	"daypass/services/backend"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source fetches the raw price table.
type Source interface {
	GetPricing(ctx context.Context) (*backend.PricingPayload, error)
}

// DefaultPriceTable is used for every key the backend leaves out.
// It has no explicit child price, so children cost 60% of an adult.
func DefaultPriceTable() models.PriceTable {
	return models.PriceTable{
		BasePriceAdult:      decimal.NewFromInt(25),
		GuidedTourSurcharge: decimal.NewFromInt(5),
		Attractions: map[string]models.Attraction{
			"pena-palace-full":  {DisplayName: "Pena Palace (park and palace)", UnitPrice: decimal.NewFromInt(14)},
			"pena-park":         {DisplayName: "Pena Park", UnitPrice: decimal.NewFromFloat(7.5)},
			"moorish-castle":    {DisplayName: "Moorish Castle", UnitPrice: decimal.NewFromInt(8)},
			"quinta-regaleira":  {DisplayName: "Quinta da Regaleira", UnitPrice: decimal.NewFromInt(10)},
			"monserrate-palace": {DisplayName: "Monserrate Palace", UnitPrice: decimal.NewFromFloat(8.5)},
		},
	}
}

// Loader loads the price table once per session.
type Loader struct {
	source Source
	logger *zap.Logger
}

func NewLoader(source Source, logger *zap.Logger) *Loader {
	return &Loader{source: source, logger: logger}
}

// Load returns the backend table merged into the defaults. A failed fetch is
// not fatal: the defaults are returned together with the error so callers
// can report it.
func (l *Loader) Load(ctx context.Context) (models.PriceTable, error) {
	payload, err := l.source.GetPricing(ctx)
	if err != nil {
		l.logger.Warn("pricing load failed, using defaults", zap.Error(err))
		return DefaultPriceTable(), err
	}
	table := Merge(DefaultPriceTable(), payload)
	if _, fallback := table.ChildPrice(); fallback {
		l.logger.Info("price table has no child price, using 60% of adult price",
			zap.String("adult", table.BasePriceAdult.String()))
	}
	return table, nil
}

// Merge overlays a partial payload on base. Attractions are merged by id;
// an attraction without a price keeps the base price or is skipped.
func Merge(base models.PriceTable, p *backend.PricingPayload) models.PriceTable {
	out := models.PriceTable{
		BasePriceAdult:      base.BasePriceAdult,
		BasePriceChild:      base.BasePriceChild,
		GuidedTourSurcharge: base.GuidedTourSurcharge,
		Attractions:         make(map[string]models.Attraction, len(base.Attractions)),
	}
	for id, a := range base.Attractions {
		out.Attractions[id] = a
	}
	if p == nil {
		return out
	}
	if p.BasePriceAdult != nil {
		out.BasePriceAdult = *p.BasePriceAdult
	}
	if p.BasePriceChild != nil {
		child := *p.BasePriceChild
		out.BasePriceChild = &child
	}
	if p.GuidedTourSurcharge != nil {
		out.GuidedTourSurcharge = *p.GuidedTourSurcharge
	}
	for id, a := range p.Attractions {
		existing, known := out.Attractions[id]
		if a.UnitPrice == nil && !known {
			continue
		}
		if a.UnitPrice != nil {
			existing.UnitPrice = *a.UnitPrice
		}
		if a.DisplayName != "" {
			existing.DisplayName = a.DisplayName
		}
		out.Attractions[id] = existing
	}
	return out
}
