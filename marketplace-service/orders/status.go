package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/notify"

	"go.uber.org/zap"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusProcessing: {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to models.OrderStatus) error {
	if !CanTransition(from, to) {
		return &apperr.InvalidTransitionError{From: string(from), To: string(to)}
	}
	return nil
}

const maxConflictRetries = 5

type StatusUpdate struct {
	Status         models.OrderStatus
	Notes          string
	TrackingNumber string
	Carrier        string
}

type Transition struct {
	Order         *models.Order
	Changed       bool
	Notifications []notify.Request
}

// UpdateStatus moves an order along the lifecycle. Requesting the current
// status is a no-op; cancellation goes through the same path as CancelOrder.
func (e *Engine) UpdateStatus(ctx context.Context, orderID string, actor auth.Actor, upd StatusUpdate) (*Transition, error) {
	if !upd.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown status %q", upd.Status)
	}
	if upd.Status == models.StatusCancelled {
		return e.cancel(ctx, orderID, actor, auth.ActionUpdateOrderStatus, upd.Notes)
	}

	statusChanged := false
	order, changed, err := e.mutate(ctx, orderID, func(o *models.Order) (bool, error) {
		statusChanged = false
		if err := auth.Authorize(actor, auth.ActionUpdateOrderStatus, auth.OrderResource(o)); err != nil {
			return false, err
		}
		now := e.now().UTC()
		changed := false
		if o.Status != upd.Status {
			if err := checkTransition(o.Status, upd.Status); err != nil {
				return false, err
			}
			o.SetStatus(upd.Status, now, upd.Notes, actor.UserID)
			statusChanged, changed = true, true
		}
		if upd.TrackingNumber != "" && upd.TrackingNumber != o.TrackingNumber {
			o.TrackingNumber = upd.TrackingNumber
			changed = true
		}
		if upd.Carrier != "" && upd.Carrier != o.Carrier {
			o.Carrier = upd.Carrier
			changed = true
		}
		if changed {
			o.UpdatedAt = now
		}
		return changed, nil
	}, nil)
	if err != nil {
		return nil, err
	}

	t := &Transition{Order: order, Changed: changed}
	if statusChanged {
		statusTransitions.WithLabelValues(string(order.Status)).Inc()
		t.Notifications = statusNotifications(order)
		e.logger.Info("Order status updated",
			zap.String("order_number", order.OrderNumber),
			zap.String("status", string(order.Status)),
			zap.String("actor_id", actor.UserID))
	}
	return t, nil
}

// CancelOrder cancels an order that has not shipped and restores the stock of
// every line.
func (e *Engine) CancelOrder(ctx context.Context, orderID string, actor auth.Actor, reason string) (*Transition, error) {
	return e.cancel(ctx, orderID, actor, auth.ActionCancelOrder, reason)
}

func (e *Engine) cancel(ctx context.Context, orderID string, actor auth.Actor, action auth.Action, reason string) (*Transition, error) {
	order, changed, err := e.mutate(ctx, orderID, func(o *models.Order) (bool, error) {
		if err := auth.Authorize(actor, action, auth.OrderResource(o)); err != nil {
			return false, err
		}
		if action == auth.ActionUpdateOrderStatus && o.Status == models.StatusCancelled {
			return false, nil
		}
		if err := checkTransition(o.Status, models.StatusCancelled); err != nil {
			return false, err
		}
		o.SetStatus(models.StatusCancelled, e.now().UTC(), reason, actor.UserID)
		return true, nil
	}, e.restoreCancelled)

	var pfe *apperr.PartialFulfillmentError
	if err != nil && !(errors.As(err, &pfe) && order != nil) {
		return nil, err
	}

	t := &Transition{Order: order, Changed: changed}
	if changed {
		statusTransitions.WithLabelValues(string(models.StatusCancelled)).Inc()
		t.Notifications = cancellationNotifications(order)
		e.logger.Info("Order cancelled",
			zap.String("order_number", order.OrderNumber),
			zap.String("actor_id", actor.UserID),
			zap.String("reason", reason))
	}
	return t, err
}

// restoreCancelled runs after the cancellation is recorded. Inside a
// transaction a failure rolls the cancellation back; without one the order
// stays cancelled and the leftover is reported for reconciliation.
func (e *Engine) restoreCancelled(ctx context.Context, o *models.Order) error {
	_, transactional := e.orders.(Transactor)
	if !transactional {
		ctx = context.WithoutCancel(ctx)
	}
	failed := e.restoreStock(ctx, o.OrderNumber, o.Items)
	if len(failed) == 0 {
		return nil
	}
	if transactional {
		return &apperr.PersistenceError{Op: "restore stock", Err: fmt.Errorf("items %s", strings.Join(failed, ","))}
	}
	e.logger.Error("Cancelled order left stock unreconciled",
		zap.String("order_number", o.OrderNumber),
		zap.Strings("item_ids", failed),
		zap.Bool("reconciliation_required", true))
	return &apperr.PartialFulfillmentError{OrderNumber: o.OrderNumber, Items: failed, Err: errors.New("stock restore failed")}
}

// mutate applies fn to the stored order and writes it back with a version
// check, retrying on lost races. after runs only when fn changed the order
// and the write won; inside the same transaction when the store has one.
func (e *Engine) mutate(
	ctx context.Context,
	orderID string,
	fn func(o *models.Order) (bool, error),
	after func(ctx context.Context, o *models.Order) error,
) (*models.Order, bool, error) {
	tx, transactional := e.orders.(Transactor)

	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		var (
			order   *models.Order
			changed bool
		)
		run := func(ctx context.Context) error {
			o, err := e.orders.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			expected := o.Version
			if changed, err = fn(o); err != nil || !changed {
				order = o
				return err
			}
			if err := e.orders.UpdateOrder(ctx, o, expected); err != nil {
				return err
			}
			order = o
			if transactional && after != nil {
				return after(ctx, o)
			}
			return nil
		}

		var err error
		if transactional {
			err = tx.RunInTx(ctx, run)
		} else {
			err = run(ctx)
		}
		if errors.Is(err, apperr.ErrConflict) {
			e.logger.Debug("Order version conflict, retrying",
				zap.String("order_id", orderID),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, false, apperr.Persistence("update order", err)
		}
		if changed && !transactional && after != nil {
			if err := after(ctx, order); err != nil {
				return order, true, err
			}
		}
		return order, changed, nil
	}
	return nil, false, &apperr.PersistenceError{
		Op:  "update order",
		Err: fmt.Errorf("gave up after %d conflicting writes: %w", maxConflictRetries, apperr.ErrConflict),
	}
}
