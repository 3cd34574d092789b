// Package catalog holds the inventory contracts shared by carts and orders.
package catalog

import (
	"context"

	"agromart/marketplace-service/models"

	"github.com/shopspring/decimal"
)

// Store is the inventory view used by carts and orders.
//
// DecrementStock succeeds only when the live quantity is at least amount, and
// on success also adds amount to the sales counter. A shortfall is reported as
// *apperr.InsufficientStockError carrying the live quantity. IncrementStock
// reverses a decrement; the sales counter never drops below zero and
// salesClamped reports that the floor was hit.
type Store interface {
	Get(ctx context.Context, kind models.ItemKind, id string) (*models.CatalogItem, error)
	DecrementStock(ctx context.Context, kind models.ItemKind, id string, amount int) error
	IncrementStock(ctx context.Context, kind models.ItemKind, id string, amount int) (salesClamped bool, err error)
}

// Repository adds listing management on top of Store.
type Repository interface {
	Store

	ListProducts(ctx context.Context, filter models.CatalogFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	SetProductStock(ctx context.Context, id string, stock int) (*models.Product, error)

	ListWasteProducts(ctx context.Context, filter models.CatalogFilter) ([]models.WasteProduct, error)
	GetWasteProduct(ctx context.Context, id string) (*models.WasteProduct, error)
	CreateWasteProduct(ctx context.Context, w *models.WasteProduct) error
	SetWasteQuantity(ctx context.Context, id string, quantity decimal.Decimal) (*models.WasteProduct, error)
}
