package orders

import (
	"agromart/marketplace-service/models"

	"github.com/shopspring/decimal"
)

// Pricing holds the knobs that turn a cart snapshot into order totals.
type Pricing struct {
	TaxRate         decimal.Decimal
	ShippingPerItem decimal.Decimal
	CODSurcharge    decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:         decimal.RequireFromString("0.10"),
		ShippingPerItem: decimal.NewFromInt(100),
		CODSurcharge:    decimal.Zero,
	}
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Compute prices the lines. Shipping is charged per line item, not per unit.
// Money is rounded to two places half away from zero.
func (p Pricing) Compute(lines []models.LineItem, method models.PaymentMethod) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	subtotal = subtotal.Round(2)

	shipping := p.ShippingPerItem.Mul(decimal.NewFromInt(int64(len(lines))))
	if method == models.PaymentCOD {
		shipping = shipping.Add(p.CODSurcharge)
	}

	t := Totals{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(p.TaxRate).Round(2),
		Shipping: shipping.Round(2),
		Discount: decimal.Zero,
	}
	t.Total = t.Subtotal.Add(t.Tax).Add(t.Shipping).Sub(t.Discount)
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}
	return t
}
