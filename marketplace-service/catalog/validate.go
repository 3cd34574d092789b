package catalog

import (
	"strings"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"
)

func ValidateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return apperr.Invalid("name", "is required")
	case !p.Category.Valid():
		return apperr.Invalid("category", "unknown category %q", p.Category)
	case p.Price.IsNegative():
		return apperr.Invalid("price", "must not be negative")
	case p.Stock < 0:
		return apperr.Invalid("stock", "must not be negative")
	case p.Unit == "":
		return apperr.Invalid("unit", "is required")
	}
	return nil
}

func ValidateWasteProduct(w *models.WasteProduct) error {
	w.Name = strings.TrimSpace(w.Name)
	switch {
	case w.Name == "":
		return apperr.Invalid("name", "is required")
	case !w.Type.Valid():
		return apperr.Invalid("type", "unknown waste type %q", w.Type)
	case w.Price.IsNegative():
		return apperr.Invalid("price", "must not be negative")
	case w.Quantity.IsNegative():
		return apperr.Invalid("quantity", "must not be negative")
	case w.Unit == "":
		return apperr.Invalid("unit", "is required")
	case w.Location == "":
		return apperr.Invalid("location", "is required")
	}
	return nil
}
