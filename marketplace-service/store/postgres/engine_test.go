package postgres

import (
	"context"
	"errors"
	"testing"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/orders"
	"agromart/marketplace-service/store/memory"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"go.uber.org/zap/zaptest"
)

// The engine runs placement inside a single database transaction when the
// order store can provide one.
func setupEngine(t *testing.T) (*orders.Engine, sqlmock.Sqlmock, *memory.Store) {
	t.Helper()
	store, mock := setupStore(t)
	carts := memory.New()
	_, err := carts.Mutate(context.Background(), buyerID, func(c *models.Cart) (bool, error) {
		c.Items = append(c.Items, models.CartItem{Kind: models.KindProduct, ItemID: productID, Quantity: 2})
		return true, nil
	})
	if err != nil {
		t.Fatalf("Failed to seed cart: %v", err)
	}
	cfg := orders.Config{Pricing: orders.DefaultPricing(), NumberRetries: 3, DeliveryDays: 7}
	return orders.NewEngine(store, store, carts, cfg, zaptest.NewLogger(t)), mock, carts
}

func expectCatalogLookup(mock sqlmock.Sqlmock, stock string) {
	mock.ExpectQuery(quote("SELECT id, name, category, price, stock, unit, seller_id, image FROM products WHERE id = $1")).
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "price", "stock", "unit", "seller_id", "image"}).
			AddRow(productID, "Tomatoes", "vegetables", "40.00", stock, "kg", sellerID, ""))
}

func placeInput() orders.PlaceOrderInput {
	return orders.PlaceOrderInput{
		Buyer:      auth.Actor{UserID: buyerID, Role: models.RoleBuyer},
		BuyerEmail: "buyer@example.com",
		ShippingAddress: models.ShippingAddress{
			FullName: "Asha Patil", Phone: "9800000000", Street: "12 Market Road",
			City: "Pune", State: "MH", PostalCode: "411001",
		},
		PaymentMethod: models.PaymentCOD,
	}
}

func TestEngine_PlaceOrder_SingleTransaction(t *testing.T) {
	engine, mock, carts := setupEngine(t)

	expectCatalogLookup(mock, "10")
	mock.ExpectBegin()
	mock.ExpectExec(quote("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(quote("UPDATE products SET stock = stock - $1::integer")).
		WithArgs(2, productID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	placement, err := engine.PlaceOrder(context.Background(), placeInput())
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	// 80 subtotal + 8 tax + 100 shipping
	if got := placement.Order.TotalAmount.String(); got != "188" {
		t.Errorf("Expected total 188, got %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}

	cart, _ := carts.Load(context.Background(), buyerID)
	if len(cart.Items) != 0 {
		t.Errorf("Expected cart to be cleared, got %d items", len(cart.Items))
	}
}

func TestEngine_PlaceOrder_RollsBackOnShortfall(t *testing.T) {
	engine, mock, carts := setupEngine(t)

	expectCatalogLookup(mock, "10")
	mock.ExpectBegin()
	mock.ExpectExec(quote("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(quote("UPDATE products SET stock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(quote("SELECT stock FROM products WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow("1"))
	mock.ExpectRollback()

	_, err := engine.PlaceOrder(context.Background(), placeInput())

	var ise *apperr.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if ise.Name != "Tomatoes" || ise.Requested != 2 || ise.Available.String() != "1" {
		t.Errorf("Unexpected shortfall: %+v", ise)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}

	cart, _ := carts.Load(context.Background(), buyerID)
	if len(cart.Items) != 1 {
		t.Errorf("Expected cart to be kept, got %d items", len(cart.Items))
	}
}

func TestEngine_PlaceOrder_RetriesNumberCollision(t *testing.T) {
	engine, mock, _ := setupEngine(t)

	expectCatalogLookup(mock, "10")
	mock.ExpectBegin()
	mock.ExpectExec(quote("INSERT INTO orders")).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(quote("INSERT INTO orders")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(quote("UPDATE products SET stock")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := engine.PlaceOrder(context.Background(), placeInput()); err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
