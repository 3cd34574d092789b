package cart

import (
	"context"

	"agromart/marketplace-service/models"
)

// Store persists one cart per user. Mutate is an atomic read-modify-write:
// fn edits the cart in place and reports whether anything changed, and
// concurrent mutations of the same cart never lose each other's updates.
// Unchanged carts are not written back.
type Store interface {
	Load(ctx context.Context, userID string) (*models.Cart, error)
	Mutate(ctx context.Context, userID string, fn func(c *models.Cart) (changed bool, err error)) (*models.Cart, error)
	Clear(ctx context.Context, userID string) error
}
