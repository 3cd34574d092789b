// Package memory is a process-local implementation of the catalog, order and
// cart stores. Each call is atomic under a single lock; it does not support
// multi-call transactions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu       sync.Mutex
	products map[string]*models.Product
	waste    map[string]*models.WasteProduct
	orders   map[string]*models.Order
	numbers  map[string]string
	carts    map[string]*models.Cart
}

func New() *Store {
	return &Store{
		products: make(map[string]*models.Product),
		waste:    make(map[string]*models.WasteProduct),
		orders:   make(map[string]*models.Order),
		numbers:  make(map[string]string),
		carts:    make(map[string]*models.Cart),
	}
}

func (s *Store) AddProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = &p
}

func (s *Store) AddWasteProduct(w models.WasteProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.waste[w.ID] = &w
}

func (s *Store) DeleteItem(kind models.ItemKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == models.KindWasteProduct {
		delete(s.waste, id)
		return
	}
	delete(s.products, id)
}

// Level returns the live quantity and sales counter of an item.
func (s *Store) Level(kind models.ItemKind, id string) (decimal.Decimal, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == models.KindWasteProduct {
		w, ok := s.waste[id]
		if !ok {
			return decimal.Zero, 0, false
		}
		return w.Quantity, w.SalesCount, true
	}
	p, ok := s.products[id]
	if !ok {
		return decimal.Zero, 0, false
	}
	return decimal.NewFromInt(int64(p.Stock)), p.SalesCount, true
}

func (s *Store) Get(_ context.Context, kind models.ItemKind, id string) (*models.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case models.KindProduct:
		if p, ok := s.products[id]; ok {
			item := p.CatalogItem()
			return &item, nil
		}
		return nil, &apperr.NotFoundError{Resource: "product", ID: id}
	case models.KindWasteProduct:
		if w, ok := s.waste[id]; ok {
			item := w.CatalogItem()
			return &item, nil
		}
		return nil, &apperr.NotFoundError{Resource: "waste product", ID: id}
	}
	return nil, apperr.Invalid("kind", "unknown item kind %q", kind)
}

func (s *Store) DecrementStock(_ context.Context, kind models.ItemKind, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case models.KindProduct:
		p, ok := s.products[id]
		if !ok {
			return &apperr.NotFoundError{Resource: "product", ID: id}
		}
		if p.Stock < amount {
			return &apperr.InsufficientStockError{ItemID: id, Name: p.Name, Unit: p.Unit, Requested: amount, Available: decimal.NewFromInt(int64(p.Stock))}
		}
		p.Stock -= amount
		p.SalesCount += amount
		return nil
	case models.KindWasteProduct:
		w, ok := s.waste[id]
		if !ok {
			return &apperr.NotFoundError{Resource: "waste product", ID: id}
		}
		n := decimal.NewFromInt(int64(amount))
		if w.Quantity.LessThan(n) {
			return &apperr.InsufficientStockError{ItemID: id, Name: w.Name, Unit: w.Unit, Requested: amount, Available: w.Quantity}
		}
		w.Quantity = w.Quantity.Sub(n)
		w.SalesCount += amount
		return nil
	}
	return apperr.Invalid("kind", "unknown item kind %q", kind)
}

func (s *Store) IncrementStock(_ context.Context, kind models.ItemKind, id string, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sales *int
	switch kind {
	case models.KindProduct:
		p, ok := s.products[id]
		if !ok {
			return false, &apperr.NotFoundError{Resource: "product", ID: id}
		}
		p.Stock += amount
		sales = &p.SalesCount
	case models.KindWasteProduct:
		w, ok := s.waste[id]
		if !ok {
			return false, &apperr.NotFoundError{Resource: "waste product", ID: id}
		}
		w.Quantity = w.Quantity.Add(decimal.NewFromInt(int64(amount)))
		sales = &w.SalesCount
	default:
		return false, apperr.Invalid("kind", "unknown item kind %q", kind)
	}
	if *sales < amount {
		*sales = 0
		return true, nil
	}
	*sales -= amount
	return false, nil
}

func (s *Store) InsertOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.numbers[o.OrderNumber]; taken {
		return apperr.ErrDuplicate
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.numbers[o.OrderNumber] = o.ID
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "order", ID: id}
	}
	return o.Clone(), nil
}

func (s *Store) UpdateOrder(_ context.Context, o *models.Order, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok {
		return &apperr.NotFoundError{Resource: "order", ID: o.ID}
	}
	if cur.Version != expectedVersion {
		return apperr.ErrConflict
	}
	o.Version = expectedVersion + 1
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) ListOrders(_ context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	s.mu.Lock()
	var matched []models.Order
	for _, o := range s.orders {
		if filter.BuyerID != "" && o.BuyerID != filter.BuyerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && o.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !o.CreatedAt.Before(filter.To) {
			continue
		}
		matched = append(matched, *o.Clone())
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= total {
		return []models.Order{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) OrdersBetween(_ context.Context, from, to time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Load(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartCopy(userID), nil
}

func (s *Store) Mutate(_ context.Context, userID string, fn func(*models.Cart) (bool, error)) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cartCopy(userID)
	changed, err := fn(c)
	if err != nil {
		return nil, err
	}
	if changed {
		c.UpdatedAt = time.Now().UTC()
		stored := *c
		stored.Items = append([]models.CartItem(nil), c.Items...)
		s.carts[userID] = &stored
	}
	return c, nil
}

func (s *Store) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *Store) cartCopy(userID string) *models.Cart {
	c, ok := s.carts[userID]
	if !ok {
		return &models.Cart{UserID: userID}
	}
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp
}
