// Package cart keeps each user's pending selection of catalog items.
package cart

import (
	"context"
	"errors"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/catalog"
	"agromart/marketplace-service/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	store   Store
	catalog catalog.Store
	logger  *zap.Logger
}

func NewService(store Store, cat catalog.Store, logger *zap.Logger) *Service {
	return &Service{store: store, catalog: cat, logger: logger}
}

// Get returns the cart joined with live catalog data. Lines whose item is
// gone or sold out are dropped and quantities above availability are clamped;
// the healed cart is written back only if something changed.
func (s *Service) Get(ctx context.Context, userID string) (*models.CartView, error) {
	var lines []models.CartLine
	_, err := s.store.Mutate(ctx, userID, func(c *models.Cart) (bool, error) {
		lines = lines[:0]
		kept := make([]models.CartItem, 0, len(c.Items))
		changed := false
		for _, it := range c.Items {
			item, err := s.catalog.Get(ctx, it.Kind, it.ItemID)
			if errors.Is(err, apperr.ErrNotFound) {
				s.logger.Info("Dropping unavailable item from cart",
					zap.String("user_id", userID), zap.String("item_id", it.ItemID))
				changed = true
				continue
			}
			if err != nil {
				return false, err
			}
			limit := item.MaxUnits()
			if limit < 1 {
				changed = true
				continue
			}
			if it.Quantity > limit {
				it.Quantity = limit
				changed = true
			}
			kept = append(kept, it)
			lines = append(lines, cartLine(item, it.Quantity))
		}
		c.Items = kept
		return changed, nil
	})
	if err != nil {
		return nil, apperr.Persistence("load cart", err)
	}
	return view(userID, lines), nil
}

// Add puts quantity units of an item into the cart, merging with an existing
// line. The merged total must fit the live availability.
func (s *Service) Add(ctx context.Context, userID string, kind models.ItemKind, itemID string, quantity int) (*models.CartView, error) {
	if err := validateLine(kind, itemID, quantity); err != nil {
		return nil, err
	}
	item, err := s.catalog.Get(ctx, kind, itemID)
	if err != nil {
		return nil, apperr.Persistence("load catalog item", err)
	}

	_, err = s.store.Mutate(ctx, userID, func(c *models.Cart) (bool, error) {
		idx := c.Find(kind, itemID)
		total := quantity
		if idx >= 0 {
			total += c.Items[idx].Quantity
		}
		if err := fits(item, total); err != nil {
			return false, err
		}
		if idx >= 0 {
			c.Items[idx].Quantity = total
		} else {
			c.Items = append(c.Items, models.CartItem{Kind: kind, ItemID: itemID, Quantity: total, AddedAt: now()})
		}
		return true, nil
	})
	if err != nil {
		return nil, apperr.Persistence("update cart", err)
	}
	return s.Get(ctx, userID)
}

// Update sets the quantity of a line already in the cart.
func (s *Service) Update(ctx context.Context, userID string, kind models.ItemKind, itemID string, quantity int) (*models.CartView, error) {
	if err := validateLine(kind, itemID, quantity); err != nil {
		return nil, err
	}
	item, err := s.catalog.Get(ctx, kind, itemID)
	if err != nil {
		return nil, apperr.Persistence("load catalog item", err)
	}

	_, err = s.store.Mutate(ctx, userID, func(c *models.Cart) (bool, error) {
		idx := c.Find(kind, itemID)
		if idx < 0 {
			return false, &apperr.NotFoundError{Resource: "cart item", ID: itemID}
		}
		if err := fits(item, quantity); err != nil {
			return false, err
		}
		if c.Items[idx].Quantity == quantity {
			return false, nil
		}
		c.Items[idx].Quantity = quantity
		return true, nil
	})
	if err != nil {
		return nil, apperr.Persistence("update cart", err)
	}
	return s.Get(ctx, userID)
}

// Remove deletes a line. Removing a line that is not there is not an error.
func (s *Service) Remove(ctx context.Context, userID string, kind models.ItemKind, itemID string) (*models.CartView, error) {
	if !kind.Valid() {
		return nil, apperr.Invalid("kind", "unknown item kind %q", kind)
	}
	_, err := s.store.Mutate(ctx, userID, func(c *models.Cart) (bool, error) {
		idx := c.Find(kind, itemID)
		if idx < 0 {
			return false, nil
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true, nil
	})
	if err != nil {
		return nil, apperr.Persistence("update cart", err)
	}
	return s.Get(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return apperr.Persistence("clear cart", err)
	}
	return nil
}

func validateLine(kind models.ItemKind, itemID string, quantity int) error {
	switch {
	case !kind.Valid():
		return apperr.Invalid("kind", "unknown item kind %q", kind)
	case itemID == "":
		return apperr.Invalid("itemId", "is required")
	case quantity < 1:
		return apperr.Invalid("quantity", "must be at least 1")
	}
	return nil
}

func fits(item *models.CatalogItem, quantity int) error {
	if item.Available.LessThan(decimal.NewFromInt(int64(quantity))) {
		return &apperr.InsufficientStockError{
			ItemID:    item.ID,
			Name:      item.Name,
			Unit:      item.Unit,
			Requested: quantity,
			Available: item.Available,
		}
	}
	return nil
}

func cartLine(item *models.CatalogItem, quantity int) models.CartLine {
	return models.CartLine{
		ItemID:            item.ID,
		Kind:              item.Kind,
		IsWasteProduct:    item.Kind == models.KindWasteProduct,
		Name:              item.Name,
		Image:             item.Image,
		Price:             item.Price,
		Quantity:          quantity,
		AvailableQuantity: item.Available,
		Unit:              item.Unit,
		SellerID:          item.SellerID,
		LineTotal:         item.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func view(userID string, lines []models.CartLine) *models.CartView {
	v := &models.CartView{UserID: userID, Items: lines, Subtotal: decimal.Zero}
	if v.Items == nil {
		v.Items = []models.CartLine{}
	}
	for _, l := range lines {
		v.ItemCount += l.Quantity
		v.Subtotal = v.Subtotal.Add(l.LineTotal)
	}
	return v
}
