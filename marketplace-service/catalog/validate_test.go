package catalog

import (
	"testing"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validProduct() models.Product {
	return models.Product{
		Name:     " Okra ",
		Category: models.CategoryVegetables,
		Price:    decimal.NewFromInt(30),
		Stock:    8,
		Unit:     "kg",
	}
}

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *models.Product)
		field  string
	}{
		{name: "valid", modify: func(p *models.Product) {}},
		{name: "free product is allowed", modify: func(p *models.Product) { p.Price = decimal.Zero }},
		{name: "negative price", modify: func(p *models.Product) { p.Price = decimal.NewFromInt(-1) }, field: "price"},
		{name: "blank name", modify: func(p *models.Product) { p.Name = "  " }, field: "name"},
		{name: "unknown category", modify: func(p *models.Product) { p.Category = "gadgets" }, field: "category"},
		{name: "negative stock", modify: func(p *models.Product) { p.Stock = -1 }, field: "stock"},
		{name: "missing unit", modify: func(p *models.Product) { p.Unit = "" }, field: "unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.modify(&p)
			err := ValidateProduct(&p)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *apperr.ValidationError
			if assert.ErrorAs(t, err, &ve) {
				assert.Equal(t, tt.field, ve.Field)
			}
		})
	}
}
