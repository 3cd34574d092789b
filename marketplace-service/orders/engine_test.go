package orders

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/store/memory"
	"agromart/pkg/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	buyer  = auth.Actor{UserID: "buyer-1", Role: models.RoleBuyer}
	admin  = auth.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	other  = auth.Actor{UserID: "buyer-2", Role: models.RoleBuyer}
	seller = auth.Actor{UserID: "seller-1", Role: models.RoleFarmer}
)

func setup(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	cfg := Config{Pricing: DefaultPricing(), NumberRetries: 3, DeliveryDays: 7}
	return NewEngine(st, st, st, cfg, zaptest.NewLogger(t)), st
}

func seedProduct(st *memory.Store, id, sellerID, price string, stock int) {
	st.AddProduct(models.Product{
		ID:       id,
		Name:     "Product " + id,
		Category: models.CategoryVegetables,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Unit:     "kg",
		SellerID: sellerID,
	})
}

func seedWaste(st *memory.Store, id, sellerID, price, quantity string) {
	st.AddWasteProduct(models.WasteProduct{
		ID:       id,
		Name:     "Waste " + id,
		Type:     models.WasteCropResidue,
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(quantity),
		Unit:     "ton",
		Location: "Pune",
		SellerID: sellerID,
	})
}

func fillCart(t *testing.T, st *memory.Store, userID string, items ...models.CartItem) {
	t.Helper()
	_, err := st.Mutate(context.Background(), userID, func(c *models.Cart) (bool, error) {
		c.Items = append(c.Items, items...)
		return true, nil
	})
	require.NoError(t, err)
}

func product(id string, qty int) models.CartItem {
	return models.CartItem{Kind: models.KindProduct, ItemID: id, Quantity: qty}
}

func address() models.ShippingAddress {
	return models.ShippingAddress{
		FullName:   "Asha Patil",
		Phone:      "9800000000",
		Street:     "12 Market Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
	}
}

func placeInput(actor auth.Actor) PlaceOrderInput {
	return PlaceOrderInput{
		Buyer:           actor,
		BuyerEmail:      actor.UserID + "@example.com",
		ShippingAddress: address(),
		PaymentMethod:   models.PaymentCard,
	}
}

func level(t *testing.T, st *memory.Store, kind models.ItemKind, id string) (string, int) {
	t.Helper()
	qty, sales, ok := st.Level(kind, id)
	require.True(t, ok, "item %s missing", id)
	return qty.String(), sales
}

func TestPlaceOrder_ComputesTotalsAndDecrementsStock(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 10)
	seedProduct(st, "p2", "seller-2", "150", 5)
	fillCart(t, st, buyer.UserID, product("p1", 2), product("p2", 1))

	placement, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	require.NoError(t, err)
	o := placement.Order

	assert.Equal(t, "250", o.Subtotal.String())
	assert.Equal(t, "25", o.TaxAmount.String())
	assert.Equal(t, "200", o.ShippingAmount.String())
	assert.Equal(t, "475", o.TotalAmount.String())
	assert.Equal(t, models.StatusProcessing, o.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, models.StatusProcessing, o.StatusHistory[0].Status)
	assert.Equal(t, models.PaymentPending, o.PaymentDetails.Status)
	assert.Equal(t, "Product p1", o.Items[0].Name)
	assert.Equal(t, string(models.CategoryVegetables), o.Items[0].Category)

	stock, sales := level(t, st, models.KindProduct, "p1")
	assert.Equal(t, "8", stock)
	assert.Equal(t, 2, sales)
	stock, sales = level(t, st, models.KindProduct, "p2")
	assert.Equal(t, "4", stock)
	assert.Equal(t, 1, sales)

	cart, err := st.Load(context.Background(), buyer.UserID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	stored, err := st.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, stored.OrderNumber)

	require.Len(t, placement.Notifications, 3)
	assert.Equal(t, events.TypeOrderConfirmed, placement.Notifications[0].Type)
	assert.Equal(t, buyer.UserID, placement.Notifications[0].RecipientID)
	assert.Equal(t, events.TypeNewOrder, placement.Notifications[1].Type)
	assert.Equal(t, "seller-1", placement.Notifications[1].RecipientID)
	assert.Equal(t, "100.00", placement.Notifications[1].Data["amount"])
	assert.Equal(t, "seller-2", placement.Notifications[2].RecipientID)
}

func TestPlaceOrder_WasteProductFractionalQuantity(t *testing.T) {
	e, st := setup(t)
	seedWaste(st, "w1", "seller-3", "20", "2.5")
	fillCart(t, st, buyer.UserID, models.CartItem{Kind: models.KindWasteProduct, ItemID: "w1", Quantity: 2})

	placement, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	require.NoError(t, err)
	assert.True(t, placement.Order.Items[0].IsWasteProduct())
	assert.Equal(t, string(models.WasteCropResidue), placement.Order.Items[0].WasteType)

	qty, sales := level(t, st, models.KindWasteProduct, "w1")
	assert.Equal(t, "0.5", qty)
	assert.Equal(t, 2, sales)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	e, _ := setup(t)

	_, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 3)
	fillCart(t, st, buyer.UserID, product("p1", 5))

	_, err := e.PlaceOrder(context.Background(), placeInput(buyer))

	var ise *apperr.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "Product p1", ise.Name)
	assert.Equal(t, 5, ise.Requested)
	assert.Equal(t, "3", ise.Available.String())

	stock, sales := level(t, st, models.KindProduct, "p1")
	assert.Equal(t, "3", stock)
	assert.Zero(t, sales)
	list, total, err := st.ListOrders(context.Background(), models.OrderFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestPlaceOrder_CollectsEveryProblem(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 1)
	fillCart(t, st, buyer.UserID, product("p1", 2), product("gone", 1))

	_, err := e.PlaceOrder(context.Background(), placeInput(buyer))

	var sve *apperr.StockValidationError
	require.ErrorAs(t, err, &sve)
	assert.Len(t, sve.Problems, 2)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPlaceOrder_ValidatesInput(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 5)
	fillCart(t, st, buyer.UserID, product("p1", 1))

	badPayment := placeInput(buyer)
	badPayment.PaymentMethod = "cheque"
	noCity := placeInput(buyer)
	noCity.ShippingAddress.City = ""

	for name, in := range map[string]PlaceOrderInput{"payment": badPayment, "address": noCity} {
		t.Run(name, func(t *testing.T) {
			_, err := e.PlaceOrder(context.Background(), in)
			var ve *apperr.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	_, err := e.PlaceOrder(context.Background(), placeInput(auth.Actor{}))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestPlaceOrder_ConcurrentBuyersShareLastUnit(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 1)

	const buyers = 20
	for i := 0; i < buyers; i++ {
		fillCart(t, st, buyerID(i), product("p1", 1))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.PlaceOrder(context.Background(), placeInput(auth.Actor{UserID: buyerID(i), Role: models.RoleBuyer}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, rejected)
	stock, sales := level(t, st, models.KindProduct, "p1")
	assert.Equal(t, "0", stock)
	assert.Equal(t, 1, sales)
}

func buyerID(i int) string {
	return "buyer-" + string(rune('a'+i))
}

type scriptedNumbers struct {
	mu     sync.Mutex
	script []string
}

func (s *scriptedNumbers) Next(now time.Time) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return randomNumbers{}.Next(now)
	}
	n := s.script[0]
	s.script = s.script[1:]
	return n, "INV" + n[3:]
}

func TestPlaceOrder_RetriesOrderNumberCollision(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 10)
	e.numbers = &scriptedNumbers{script: []string{"ORD-20240101-AAAA", "ORD-20240101-AAAA", "ORD-20240101-BBBB"}}

	fillCart(t, st, buyer.UserID, product("p1", 1))
	first, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240101-AAAA", first.Order.OrderNumber)

	fillCart(t, st, other.UserID, product("p1", 1))
	second, err := e.PlaceOrder(context.Background(), placeInput(other))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240101-BBBB", second.Order.OrderNumber)
	assert.Equal(t, "INV-20240101-BBBB", second.Order.InvoiceNumber)

	stock, _ := level(t, st, models.KindProduct, "p1")
	assert.Equal(t, "8", stock)
}

func TestPlaceOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 10)
	e.numbers = &scriptedNumbers{script: []string{"ORD-X", "ORD-X", "ORD-X", "ORD-X"}}

	fillCart(t, st, buyer.UserID, product("p1", 1))
	_, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	require.NoError(t, err)

	fillCart(t, st, other.UserID, product("p1", 2))
	_, err = e.PlaceOrder(context.Background(), placeInput(other))

	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	stock, sales := level(t, st, models.KindProduct, "p1")
	assert.Equal(t, "9", stock, "reserved stock must be released")
	assert.Equal(t, 1, sales)
}

type failingOrders struct {
	*memory.Store
	err error
}

func (f failingOrders) InsertOrder(context.Context, *models.Order) error { return f.err }

type failingRestore struct {
	*memory.Store
}

func (failingRestore) IncrementStock(context.Context, models.ItemKind, string, int) (bool, error) {
	return false, errors.New("catalog offline")
}

func TestPlaceOrder_InsertFailureReleasesStock(t *testing.T) {
	st := memory.New()
	e := NewEngine(failingOrders{st, errors.New("disk full")}, st, st, Config{Pricing: DefaultPricing()}, zaptest.NewLogger(t))
	seedProduct(st, "p1", "seller-1", "50", 4)
	fillCart(t, st, buyer.UserID, product("p1", 3))

	_, err := e.PlaceOrder(context.Background(), placeInput(buyer))

	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	stock, sales := level(t, st, models.KindProduct, "p1")
	assert.Equal(t, "4", stock)
	assert.Zero(t, sales)

	cart, err := st.Load(context.Background(), buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1, "cart is kept when placement fails")
}

func TestPlaceOrder_FailedReleaseIsPartialFulfillment(t *testing.T) {
	st := memory.New()
	e := NewEngine(failingOrders{st, errors.New("disk full")}, failingRestore{st}, st, Config{Pricing: DefaultPricing()}, zaptest.NewLogger(t))
	seedProduct(st, "p1", "seller-1", "50", 4)
	fillCart(t, st, buyer.UserID, product("p1", 3))

	_, err := e.PlaceOrder(context.Background(), placeInput(buyer))

	var pfe *apperr.PartialFulfillmentError
	require.ErrorAs(t, err, &pfe)
	assert.Equal(t, []string{"p1"}, pfe.Items)
	assert.NotEmpty(t, pfe.OrderNumber)
}

func TestRandomNumbers_Unique(t *testing.T) {
	format := regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{12}$`)
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		num, inv := randomNumbers{}.Next(now)
		require.Regexp(t, format, num)
		require.Equal(t, "INV"+num[3:], inv)
		require.False(t, seen[num], "duplicate order number %s", num)
		seen[num] = true
	}
}

func TestGetOrder_Authorization(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 5)
	fillCart(t, st, buyer.UserID, product("p1", 1))
	placement, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	require.NoError(t, err)
	id := placement.Order.ID

	for _, actor := range []auth.Actor{buyer, seller, admin} {
		_, err := e.GetOrder(context.Background(), id, actor)
		assert.NoError(t, err, actor.UserID)
	}
	_, err = e.GetOrder(context.Background(), id, other)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = e.GetOrder(context.Background(), "missing", admin)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListOrders_ScopedToBuyer(t *testing.T) {
	e, st := setup(t)
	seedProduct(st, "p1", "seller-1", "50", 10)
	for _, a := range []auth.Actor{buyer, buyer, other} {
		fillCart(t, st, a.UserID, product("p1", 1))
		_, err := e.PlaceOrder(context.Background(), placeInput(a))
		require.NoError(t, err)
	}

	mine, total, err := e.ListOrders(context.Background(), buyer, models.OrderFilter{BuyerID: other.UserID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, o := range mine {
		assert.Equal(t, buyer.UserID, o.BuyerID)
	}

	all, total, err := e.ListOrders(context.Background(), admin, models.OrderFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 1)
}

// cartEditedAfterLoad simulates the buyer editing the cart while an order is
// being placed from the copy that was already loaded.
type cartEditedAfterLoad struct {
	*memory.Store
	once sync.Once
	edit func(c *models.Cart)
}

func (s *cartEditedAfterLoad) Load(ctx context.Context, userID string) (*models.Cart, error) {
	c, err := s.Store.Load(ctx, userID)
	s.once.Do(func() {
		_, _ = s.Store.Mutate(ctx, userID, func(c *models.Cart) (bool, error) {
			s.edit(c)
			return true, nil
		})
	})
	return c, err
}

func TestPlaceOrder_KeepsCartChangesMadeDuringPlacement(t *testing.T) {
	st := memory.New()
	carts := &cartEditedAfterLoad{Store: st, edit: func(c *models.Cart) {
		c.Items[0].Quantity += 3
		c.Items = append(c.Items, product("p3", 1))
	}}
	e := NewEngine(st, st, carts, Config{Pricing: DefaultPricing(), NumberRetries: 3}, zaptest.NewLogger(t))
	seedProduct(st, "p1", "seller-1", "50", 10)
	seedProduct(st, "p2", "seller-1", "20", 10)
	seedProduct(st, "p3", "seller-1", "10", 10)
	fillCart(t, st, buyer.UserID, product("p1", 2), product("p2", 1))

	placement, err := e.PlaceOrder(context.Background(), placeInput(buyer))
	require.NoError(t, err)
	require.Len(t, placement.Order.Items, 2)

	cart, err := st.Load(context.Background(), buyer.UserID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "p1", cart.Items[0].ItemID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "p3", cart.Items[1].ItemID)
	assert.Equal(t, 1, cart.Items[1].Quantity)
}
