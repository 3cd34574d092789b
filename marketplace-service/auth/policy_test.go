package auth

import (
	"testing"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	order := &models.Order{
		BuyerID: "buyer-1",
		Items: []models.LineItem{
			{ItemID: "p1", SellerID: "seller-1"},
			{ItemID: "p2", SellerID: "seller-2"},
		},
	}
	res := OrderResource(order)

	buyer := Actor{UserID: "buyer-1", Role: models.RoleBuyer}
	stranger := Actor{UserID: "buyer-2", Role: models.RoleBuyer}
	seller := Actor{UserID: "seller-2", Role: models.RoleFarmer}
	admin := Actor{UserID: "admin-1", Role: models.RoleAdmin}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   error
	}{
		{"buyer views own order", buyer, ActionViewOrder, res, nil},
		{"seller with a line views order", seller, ActionViewOrder, res, nil},
		{"stranger cannot view", stranger, ActionViewOrder, res, apperr.ErrUnauthorized},
		{"anonymous cannot view", Actor{}, ActionViewOrder, res, apperr.ErrUnauthorized},
		{"admin views any order", admin, ActionViewOrder, res, nil},
		{"buyer cancels own order", buyer, ActionCancelOrder, res, nil},
		{"seller cannot cancel", seller, ActionCancelOrder, res, apperr.ErrUnauthorized},
		{"admin cancels", admin, ActionCancelOrder, res, nil},
		{"buyer cannot change status", buyer, ActionUpdateOrderStatus, res, apperr.ErrForbidden},
		{"admin changes status", admin, ActionUpdateOrderStatus, res, nil},
		{"seller cannot read stats", seller, ActionViewStats, Resource{}, apperr.ErrForbidden},
		{"admin exports", admin, ActionExportOrders, Resource{}, nil},
		{"farmer lists", seller, ActionCreateListing, Resource{}, nil},
		{"buyer cannot list", buyer, ActionCreateListing, Resource{}, apperr.ErrForbidden},
		{"owner manages listing", seller, ActionManageListing, ListingResource("seller-2"), nil},
		{"other seller cannot manage", seller, ActionManageListing, ListingResource("seller-1"), apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, tt.res)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
