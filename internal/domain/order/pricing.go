package order

import "github.com/shopspring/decimal"

// Pricing holds the tax and shipping rules applied when an order is created.
type Pricing struct {
	TaxRate decimal.Decimal
	// FlatShipping is charged unless the subtotal reaches FreeShippingOver (0 disables the threshold).
	FlatShipping     int64
	FreeShippingOver int64
}

// Compute totals lines at one instant: total = subtotal + tax + shipping.
func (p Pricing) Compute(lines []LineItem) Totals {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.Total()
	}

	tax := decimal.NewFromInt(subtotal).Mul(p.TaxRate).Round(0).IntPart()

	shipping := p.FlatShipping
	if p.FreeShippingOver > 0 && subtotal >= p.FreeShippingOver {
		shipping = 0
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}
