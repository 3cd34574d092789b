// Package orders turns carts into orders and moves orders through their
// lifecycle while keeping catalog stock in step.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/catalog"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tracerName = "marketplace-service"

type Config struct {
	Pricing       Pricing
	NumberRetries int
	DeliveryDays  int
}

type Engine struct {
	orders  Store
	catalog catalog.Store
	carts   Carts
	cfg     Config
	logger  *zap.Logger
	numbers NumberGenerator
	now     func() time.Time
}

// NewEngine wires the engine. When orders also implements Transactor, order
// placement and cancellation run as single transactions spanning the order
// and catalog writes, so orders and catalog must share the backend.
// Otherwise stock is reserved first and released again on failure.
func NewEngine(orders Store, cat catalog.Store, carts Carts, cfg Config, logger *zap.Logger) *Engine {
	if cfg.NumberRetries < 1 {
		cfg.NumberRetries = 3
	}
	if cfg.DeliveryDays < 1 {
		cfg.DeliveryDays = 7
	}
	return &Engine{
		orders:  orders,
		catalog: cat,
		carts:   carts,
		cfg:     cfg,
		logger:  logger,
		numbers: randomNumbers{},
		now:     time.Now,
	}
}

type PlaceOrderInput struct {
	Buyer           auth.Actor
	BuyerEmail      string
	ShippingAddress models.ShippingAddress
	PaymentMethod   models.PaymentMethod
	// PaymentDetails is stored as given except Status, which always starts
	// as pending.
	PaymentDetails models.PaymentDetails
}

type Placement struct {
	Order         *models.Order
	Notifications []notify.Request
}

// PlaceOrder converts the buyer's cart into an order. Stock for every line is
// decremented atomically with the order insert; no order is ever persisted
// without its stock, and stock is never taken without an order.
func (e *Engine) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Placement, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PlaceOrder")
	defer span.End()

	if err := validatePlacement(in); err != nil {
		return nil, err
	}

	cart, err := e.carts.Load(ctx, in.Buyer.UserID)
	if err != nil {
		return nil, apperr.Persistence("load cart", err)
	}
	if len(cart.Items) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	lines, err := e.snapshot(ctx, cart.Items)
	if err != nil {
		placementFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	now := e.now().UTC()
	totals := e.cfg.Pricing.Compute(lines, in.PaymentMethod)
	order := &models.Order{
		ID:                uuid.NewString(),
		BuyerID:           in.Buyer.UserID,
		BuyerEmail:        in.BuyerEmail,
		Items:             lines,
		ShippingAddress:   in.ShippingAddress,
		PaymentMethod:     in.PaymentMethod,
		PaymentDetails:    models.PaymentDetails{Status: models.PaymentPending, TransactionID: in.PaymentDetails.TransactionID},
		Subtotal:          totals.Subtotal,
		TaxAmount:         totals.Tax,
		ShippingAmount:    totals.Shipping,
		DiscountAmount:    totals.Discount,
		TotalAmount:       totals.Total,
		EstimatedDelivery: now.AddDate(0, 0, e.cfg.DeliveryDays),
		CreatedAt:         now,
	}
	order.SetStatus(models.StatusProcessing, now, "Order placed", in.Buyer.UserID)
	order.OrderNumber, order.InvoiceNumber = e.numbers.Next(now)

	if tx, ok := e.orders.(Transactor); ok {
		err = e.commitInTx(ctx, tx, order)
	} else {
		err = e.commitWithCompensation(ctx, order)
	}
	if err != nil {
		span.RecordError(err)
		placementFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.number", order.OrderNumber),
		attribute.Int("order.lines", len(order.Items)),
	)
	ordersPlaced.Inc()

	if err := e.removePlaced(ctx, in.Buyer.UserID, order.Items); err != nil {
		e.logger.Warn("Failed to remove ordered items from cart",
			zap.Error(err),
			zap.String("user_id", in.Buyer.UserID),
			zap.String("order_number", order.OrderNumber))
	}

	e.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("buyer_id", order.BuyerID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	return &Placement{Order: order, Notifications: placementNotifications(order)}, nil
}

// removePlaced takes the ordered quantities out of the cart. Lines added or
// topped up after the cart was loaded keep the difference.
func (e *Engine) removePlaced(ctx context.Context, userID string, placed []models.LineItem) error {
	_, err := e.carts.Mutate(ctx, userID, func(c *models.Cart) (bool, error) {
		changed := false
		for _, l := range placed {
			idx := c.Find(l.Kind, l.ItemID)
			if idx < 0 {
				continue
			}
			changed = true
			if c.Items[idx].Quantity > l.Quantity {
				c.Items[idx].Quantity -= l.Quantity
				continue
			}
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		}
		return changed, nil
	})
	return err
}

func validatePlacement(in PlaceOrderInput) error {
	if in.Buyer.UserID == "" {
		return apperr.ErrUnauthorized
	}
	if !in.PaymentMethod.Valid() {
		return apperr.Invalid("paymentMethod", "unsupported payment method %q", in.PaymentMethod)
	}
	if missing := in.ShippingAddress.Missing(); len(missing) > 0 {
		return apperr.Invalid("shippingAddress", "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// snapshot checks every cart line against the live catalog and copies the
// current name and price. All problems are collected before failing.
func (e *Engine) snapshot(ctx context.Context, items []models.CartItem) ([]models.LineItem, error) {
	lines := make([]models.LineItem, 0, len(items))
	var problems []error
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, apperr.Invalid("quantity", "cart item %s has quantity %d", it.ItemID, it.Quantity)
		}
		item, err := e.catalog.Get(ctx, it.Kind, it.ItemID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				problems = append(problems, err)
				continue
			}
			return nil, apperr.Persistence("load catalog item", err)
		}
		if item.Available.LessThan(decimal.NewFromInt(int64(it.Quantity))) {
			problems = append(problems, &apperr.InsufficientStockError{
				ItemID:    item.ID,
				Name:      item.Name,
				Unit:      item.Unit,
				Requested: it.Quantity,
				Available: item.Available,
			})
			continue
		}
		lines = append(lines, lineItem(item, it.Quantity))
	}
	if len(problems) > 0 {
		return nil, &apperr.StockValidationError{Problems: problems}
	}
	return lines, nil
}

func lineItem(item *models.CatalogItem, quantity int) models.LineItem {
	l := models.LineItem{
		ItemID:   item.ID,
		Kind:     item.Kind,
		Name:     item.Name,
		Quantity: quantity,
		Price:    item.Price,
		Unit:     item.Unit,
		SellerID: item.SellerID,
		Image:    item.Image,
	}
	if item.Kind == models.KindWasteProduct {
		l.WasteType = item.Classification
	} else {
		l.Category = item.Classification
	}
	return l
}

func (e *Engine) commitInTx(ctx context.Context, tx Transactor, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		err := tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := e.orders.InsertOrder(ctx, order); err != nil {
				return err
			}
			for _, l := range order.Items {
				if err := e.catalog.DecrementStock(ctx, l.Kind, l.ItemID, l.Quantity); err != nil {
					return stockError(l, err)
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrDuplicate) {
			return apperr.Persistence("place order", err)
		}
		if attempt >= e.cfg.NumberRetries {
			return &apperr.PersistenceError{Op: "insert order", Err: fmt.Errorf("order number collided %d times: %w", attempt, err)}
		}
		e.renumber(order, attempt)
	}
}

func (e *Engine) commitWithCompensation(ctx context.Context, order *models.Order) error {
	reserved := make([]models.LineItem, 0, len(order.Items))
	for _, l := range order.Items {
		if err := e.catalog.DecrementStock(ctx, l.Kind, l.ItemID, l.Quantity); err != nil {
			return e.release(ctx, order, reserved, stockError(l, err))
		}
		reserved = append(reserved, l)
	}

	for attempt := 1; ; attempt++ {
		err := e.orders.InsertOrder(ctx, order)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrDuplicate) && attempt < e.cfg.NumberRetries {
			e.renumber(order, attempt)
			continue
		}
		if errors.Is(err, apperr.ErrDuplicate) {
			err = &apperr.PersistenceError{Op: "insert order", Err: fmt.Errorf("order number collided %d times: %w", attempt, err)}
		}
		return e.release(ctx, order, reserved, err)
	}
}

func (e *Engine) renumber(order *models.Order, attempt int) {
	e.logger.Warn("Order number collision, retrying",
		zap.String("order_number", order.OrderNumber),
		zap.Int("attempt", attempt))
	order.OrderNumber, order.InvoiceNumber = e.numbers.Next(order.CreatedAt)
}

// release gives back reserved stock after a failed placement. The restore
// outlives the request context.
func (e *Engine) release(ctx context.Context, order *models.Order, reserved []models.LineItem, cause error) error {
	failed := e.restoreStock(context.WithoutCancel(ctx), order.OrderNumber, reserved)
	if len(failed) > 0 {
		e.logger.Error("Order placement left stock unreconciled",
			zap.Error(cause),
			zap.String("order_number", order.OrderNumber),
			zap.Strings("item_ids", failed),
			zap.Bool("reconciliation_required", true))
		return &apperr.PartialFulfillmentError{OrderNumber: order.OrderNumber, Items: failed, Err: cause}
	}
	return apperr.Persistence("place order", cause)
}

// restoreStock increments stock for each line and returns the ids it could
// not restore. Items deleted from the catalog are skipped.
func (e *Engine) restoreStock(ctx context.Context, orderNumber string, lines []models.LineItem) []string {
	var failed []string
	for _, l := range lines {
		clamped, err := e.catalog.IncrementStock(ctx, l.Kind, l.ItemID, l.Quantity)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			e.logger.Warn("Item no longer in catalog, stock not restored",
				zap.String("order_number", orderNumber),
				zap.String("item_id", l.ItemID))
		case err != nil:
			e.logger.Error("Failed to restore stock",
				zap.Error(err),
				zap.String("order_number", orderNumber),
				zap.String("item_id", l.ItemID),
				zap.Int("quantity", l.Quantity))
			failed = append(failed, l.ItemID)
		case clamped:
			e.logger.Warn("Sales counter floored at zero while restoring stock",
				zap.String("order_number", orderNumber),
				zap.String("item_id", l.ItemID),
				zap.Int("quantity", l.Quantity))
		}
	}
	if len(failed) > 0 {
		stockReconciliationFailures.Add(float64(len(failed)))
	}
	return failed
}

func stockError(l models.LineItem, err error) error {
	var ise *apperr.InsufficientStockError
	if errors.As(err, &ise) {
		ise.ItemID = l.ItemID
		ise.Name = l.Name
		ise.Unit = l.Unit
		ise.Requested = l.Quantity
	}
	return err
}

func failureReason(err error) string {
	var (
		pfe *apperr.PartialFulfillmentError
		ve  *apperr.ValidationError
	)
	switch {
	case errors.As(err, &pfe):
		return "partial_fulfillment"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.As(err, &ve):
		return "validation"
	}
	return "persistence"
}

func (e *Engine) GetOrder(ctx context.Context, id string, actor auth.Actor) (*models.Order, error) {
	o, err := e.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("get order", err)
	}
	if err := auth.Authorize(actor, auth.ActionViewOrder, auth.OrderResource(o)); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders pages through orders newest first. Only admins see orders other
// than their own.
func (e *Engine) ListOrders(ctx context.Context, actor auth.Actor, filter models.OrderFilter) ([]models.Order, int, error) {
	if actor.UserID == "" {
		return nil, 0, apperr.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		filter.BuyerID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.Invalid("status", "unknown status %q", filter.Status)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, 0, apperr.Invalid("endDate", "must be after startDate")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.Limit < 1:
		filter.Limit = 10
	case filter.Limit > 100:
		filter.Limit = 100
	}
	list, total, err := e.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Persistence("list orders", err)
	}
	return list, total, nil
}
