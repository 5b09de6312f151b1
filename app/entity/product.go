package entity

import "time"

type Product struct {
	ID uint64

	Name        string
	Description *string
	Active      bool

	Provider          int32
	ProviderProductID *string

	Prices []*Price

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Synced reports whether the product has been mirrored to the gateway.
func (p *Product) Synced() bool {
	return p.ProviderProductID != nil && *p.ProviderProductID != ""
}

// PricesSynced reports whether every price carries a gateway price id.
// A product referenced by checkout must satisfy this.
func (p *Product) PricesSynced() bool {
	if !p.Synced() {
		return false
	}
	for _, price := range p.Prices {
		if price.ProviderPriceID == nil || *price.ProviderPriceID == "" {
			return false
		}
	}
	return true
}

type Price struct {
	ID        uint64
	ProductID uint64

	UnitAmountCents int64
	Currency        string

	// Interval is empty for one-time prices.
	Interval      string
	IntervalCount int32

	ProviderPriceID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Price) Recurring() bool {
	return p.Interval != ""
}
