package orders

import (
	"context"
	"time"

	"agromart/marketplace-service/models"
)

// Store persists orders.
//
// InsertOrder reports an order number collision as apperr.ErrDuplicate.
// UpdateOrder is a compare-and-set on Version: it fails with apperr.ErrConflict
// when the stored version is not expectedVersion, and bumps o.Version on success.
type Store interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order, expectedVersion int) error
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	OrdersBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

// Transactor is implemented by stores that can run several writes as one
// unit. Store calls made with the context passed to fn join the transaction,
// including catalog calls when the same backend serves both.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Carts is the part of the cart store the engine needs.
type Carts interface {
	Load(ctx context.Context, userID string) (*models.Cart, error)
	Mutate(ctx context.Context, userID string, fn func(c *models.Cart) (changed bool, err error)) (*models.Cart, error)
}
