package cart

import (
	"context"
	"testing"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const user = "buyer-1"

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.AddProduct(models.Product{
		ID: "p1", Name: "Tomatoes", Category: models.CategoryVegetables,
		Price: decimal.NewFromInt(40), Stock: 5, Unit: "kg", SellerID: "seller-1",
	})
	st.AddWasteProduct(models.WasteProduct{
		ID: "w1", Name: "Rice straw", Type: models.WasteCropResidue,
		Price: decimal.NewFromInt(900), Quantity: decimal.RequireFromString("2.5"), Unit: "ton",
		Location: "Ludhiana", SellerID: "seller-2",
	})
	return NewService(st, st, zaptest.NewLogger(t)), st
}

func TestAdd_MergesLines(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user, models.KindProduct, "p1", 2)
	require.NoError(t, err)
	v, err := svc.Add(ctx, user, models.KindProduct, "p1", 1)
	require.NoError(t, err)

	require.Len(t, v.Items, 1)
	assert.Equal(t, 3, v.Items[0].Quantity)
	assert.Equal(t, "120", v.Items[0].LineTotal.String())
	assert.Equal(t, 3, v.ItemCount)
	assert.Equal(t, "120", v.Subtotal.String())
	assert.False(t, v.Items[0].IsWasteProduct)
}

func TestAdd_RejectsMergedTotalAboveStock(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user, models.KindProduct, "p1", 4)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, models.KindProduct, "p1", 2)

	var ise *apperr.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 6, ise.Requested)
	assert.Equal(t, "5", ise.Available.String())
}

func TestAdd_WasteProductAgainstFractionalQuantity(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	v, err := svc.Add(ctx, user, models.KindWasteProduct, "w1", 2)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.True(t, v.Items[0].IsWasteProduct)
	assert.Equal(t, "2.5", v.Items[0].AvailableQuantity.String())

	_, err = svc.Add(ctx, user, models.KindWasteProduct, "w1", 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestAdd_Validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	var ve *apperr.ValidationError
	_, err := svc.Add(ctx, user, models.KindProduct, "p1", 0)
	assert.ErrorAs(t, err, &ve)
	_, err = svc.Add(ctx, user, "gadget", "p1", 1)
	assert.ErrorAs(t, err, &ve)
	_, err = svc.Add(ctx, user, models.KindProduct, "nope", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, user, models.KindProduct, "p1", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Add(ctx, user, models.KindProduct, "p1", 1)
	require.NoError(t, err)
	v, err := svc.Update(ctx, user, models.KindProduct, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Items[0].Quantity)

	_, err = svc.Update(ctx, user, models.KindProduct, "p1", 6)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestRemoveAndClear(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user, models.KindProduct, "p1", 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, models.KindWasteProduct, "w1", 1)
	require.NoError(t, err)

	v, err := svc.Remove(ctx, user, models.KindProduct, "p1")
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "w1", v.Items[0].ItemID)

	_, err = svc.Remove(ctx, user, models.KindProduct, "p1")
	assert.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, user))
	v, err = svc.Get(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.True(t, v.Subtotal.IsZero())
}

func TestGet_HealsCart(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	st.AddProduct(models.Product{
		ID: "p2", Name: "Onions", Category: models.CategoryVegetables,
		Price: decimal.NewFromInt(30), Stock: 2, Unit: "kg", SellerID: "seller-1",
	})

	for _, it := range []struct {
		kind models.ItemKind
		id   string
		qty  int
	}{{models.KindProduct, "p1", 4}, {models.KindProduct, "p2", 2}, {models.KindWasteProduct, "w1", 2}} {
		_, err := svc.Add(ctx, user, it.kind, it.id, it.qty)
		require.NoError(t, err)
	}

	// stock moves underneath the cart
	require.NoError(t, st.DecrementStock(ctx, models.KindProduct, "p1", 3))
	require.NoError(t, st.DecrementStock(ctx, models.KindProduct, "p2", 2))
	st.DeleteItem(models.KindWasteProduct, "w1")

	v, err := svc.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "p1", v.Items[0].ItemID)
	assert.Equal(t, 2, v.Items[0].Quantity)

	stored, err := st.Load(ctx, user)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestGet_UnchangedCartIsNotRewritten(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user, models.KindProduct, "p1", 1)
	require.NoError(t, err)
	before, err := st.Load(ctx, user)
	require.NoError(t, err)

	_, err = svc.Get(ctx, user)
	require.NoError(t, err)
	after, err := st.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}
