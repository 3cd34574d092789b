package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"

	"github.com/google/uuid"
)

const orderColumns = `id, order_number, invoice_number, buyer_id, buyer_email, items, shipping_address,
	payment_method, payment_details, subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
	status, status_history, estimated_delivery, delivered_at, cancelled_at, cancellation_reason,
	tracking_number, carrier, version, created_at, updated_at`

type orderDocs struct {
	items, address, payment, history []byte
}

func encodeDocs(o *models.Order) (orderDocs, error) {
	var (
		d   orderDocs
		err error
	)
	if d.items, err = json.Marshal(o.Items); err != nil {
		return d, fmt.Errorf("encode items: %w", err)
	}
	if d.address, err = json.Marshal(o.ShippingAddress); err != nil {
		return d, fmt.Errorf("encode shipping address: %w", err)
	}
	if d.payment, err = json.Marshal(o.PaymentDetails); err != nil {
		return d, fmt.Errorf("encode payment details: %w", err)
	}
	if d.history, err = json.Marshal(o.StatusHistory); err != nil {
		return d, fmt.Errorf("encode status history: %w", err)
	}
	return d, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o models.Order
		d orderDocs
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.InvoiceNumber, &o.BuyerID, &o.BuyerEmail, &d.items, &d.address,
		&o.PaymentMethod, &d.payment, &o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount,
		&o.Status, &d.history, &o.EstimatedDelivery, &o.DeliveredAt, &o.CancelledAt, &o.CancellationReason,
		&o.TrackingNumber, &o.Carrier, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, doc := range []struct {
		raw  []byte
		dst  any
		name string
	}{
		{d.items, &o.Items, "items"},
		{d.address, &o.ShippingAddress, "shipping address"},
		{d.payment, &o.PaymentDetails, "payment details"},
		{d.history, &o.StatusHistory, "status history"},
	} {
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", doc.name, err)
		}
	}
	return &o, nil
}

func (s *Store) InsertOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	d, err := encodeDocs(o)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		o.ID, o.OrderNumber, o.InvoiceNumber, o.BuyerID, o.BuyerEmail, d.items, d.address,
		o.PaymentMethod, d.payment, o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
		o.Status, d.history, o.EstimatedDelivery, o.DeliveredAt, o.CancelledAt, o.CancellationReason,
		o.TrackingNumber, o.Carrier, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert order %s: %w", o.OrderNumber, apperr.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if !validID(id) {
		return nil, &apperr.NotFoundError{Resource: "order", ID: id}
	}
	o, err := scanOrder(s.q(ctx).QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateOrder writes the mutable lifecycle fields guarded by the version.
func (s *Store) UpdateOrder(ctx context.Context, o *models.Order, expectedVersion int) error {
	d, err := encodeDocs(o)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE orders SET status = $1, status_history = $2, payment_details = $3, delivered_at = $4,
		cancelled_at = $5, cancellation_reason = $6, tracking_number = $7, carrier = $8,
		version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11`,
		o.Status, d.history, d.payment, o.DeliveredAt,
		o.CancelledAt, o.CancellationReason, o.TrackingNumber, o.Carrier,
		o.UpdatedAt, o.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 0 {
		return apperr.ErrConflict
	}
	o.Version = expectedVersion + 1
	return nil
}

func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	where := " WHERE 1=1"
	var args []any
	if filter.BuyerID != "" {
		args = append(args, filter.BuyerID)
		where += " AND buyer_id = $" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += " AND created_at < $" + strconv.Itoa(len(args))
	}

	var total int
	if err := s.q(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := "SELECT " + orderColumns + " FROM orders" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	list, err := s.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) OrdersBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	return s.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at",
		from, to)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	list := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}
