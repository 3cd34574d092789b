package orders

import (
	"testing"

	"agromart/marketplace-service/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPricing_Compute(t *testing.T) {
	lines := []models.LineItem{
		{ItemID: "p1", Quantity: 2, Price: dec("50")},
		{ItemID: "p2", Quantity: 1, Price: dec("150")},
	}

	got := DefaultPricing().Compute(lines, models.PaymentCard)

	assert.Equal(t, "250", got.Subtotal.String())
	assert.Equal(t, "25", got.Tax.String())
	assert.Equal(t, "200", got.Shipping.String())
	assert.True(t, got.Discount.IsZero())
	assert.Equal(t, "475", got.Total.String())
}

func TestPricing_CODSurcharge(t *testing.T) {
	p := DefaultPricing()
	p.CODSurcharge = dec("40")
	lines := []models.LineItem{{ItemID: "p1", Quantity: 1, Price: dec("10")}}

	card := p.Compute(lines, models.PaymentCard)
	cod := p.Compute(lines, models.PaymentCOD)

	assert.Equal(t, "100", card.Shipping.String())
	assert.Equal(t, "140", cod.Shipping.String())
	assert.True(t, cod.Total.Sub(card.Total).Equal(dec("40")))
}

func TestPricing_TaxRounding(t *testing.T) {
	p := Pricing{TaxRate: dec("0.18"), ShippingPerItem: decimal.Zero}
	lines := []models.LineItem{{ItemID: "w1", Kind: models.KindWasteProduct, Quantity: 3, Price: dec("3.33")}}

	got := p.Compute(lines, models.PaymentUPI)

	assert.Equal(t, "9.99", got.Subtotal.String())
	assert.Equal(t, "1.8", got.Tax.String())
	assert.Equal(t, "11.79", got.Total.String())
}
