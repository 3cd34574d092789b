// Package apperr defines the error kinds surfaced by the marketplace core.
// Handlers map them to HTTP responses; everything else wraps or passes them through.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnauthorized      = errors.New("not authorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict reports a lost optimistic-concurrency race.
	ErrConflict = errors.New("concurrent modification")
	// ErrDuplicate reports a unique-key collision in a store.
	ErrDuplicate = errors.New("duplicate key")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InsufficientStockError struct {
	ItemID    string
	Name      string
	Unit      string
	Requested int
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ItemID
	}
	msg := fmt.Sprintf("insufficient stock for %s: requested %d, only %s", name, e.Requested, e.Available.String())
	if e.Unit != "" {
		msg += " " + e.Unit
	}
	return msg + " available"
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StockValidationError aggregates every NotFound and InsufficientStock
// problem found while validating a cart against the catalog.
type StockValidationError struct {
	Problems []error
}

func (e *StockValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *StockValidationError) Unwrap() []error { return e.Problems }

type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// PartialFulfillmentError means inventory and orders disagree and an operator
// has to reconcile them. Items lists the catalog ids left unreconciled.
type PartialFulfillmentError struct {
	OrderNumber string
	Items       []string
	Err         error
}

func (e *PartialFulfillmentError) Error() string {
	return fmt.Sprintf("order %s left inventory unreconciled for %s: %v",
		e.OrderNumber, strings.Join(e.Items, ","), e.Err)
}

func (e *PartialFulfillmentError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it already carries one
// of the domain kinds above.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve  *ValidationError
		nf  *NotFoundError
		ise *InsufficientStockError
		sve *StockValidationError
		ite *InvalidTransitionError
		pfe *PartialFulfillmentError
		pe  *PersistenceError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &ise), errors.As(err, &sve),
		errors.As(err, &ite), errors.As(err, &pfe), errors.As(err, &pe),
		errors.Is(err, ErrEmptyCart), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
