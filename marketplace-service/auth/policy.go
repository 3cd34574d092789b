// Package auth authenticates users and decides what they may do.
package auth

import (
	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/models"
)

// Actor is the authenticated caller. The zero value is anonymous.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

type Action int

const (
	ActionViewOrder Action = iota
	ActionCancelOrder
	ActionUpdateOrderStatus
	ActionViewStats
	ActionExportOrders
	ActionCreateListing
	ActionManageListing
)

func (a Action) String() string {
	switch a {
	case ActionViewOrder:
		return "view_order"
	case ActionCancelOrder:
		return "cancel_order"
	case ActionUpdateOrderStatus:
		return "update_order_status"
	case ActionViewStats:
		return "view_stats"
	case ActionExportOrders:
		return "export_orders"
	case ActionCreateListing:
		return "create_listing"
	case ActionManageListing:
		return "manage_listing"
	}
	return "unknown"
}

// Resource describes who owns a thing and who else takes part in it.
type Resource struct {
	OwnerID      string
	Participants func(userID string) bool
}

func OrderResource(o *models.Order) Resource {
	return Resource{OwnerID: o.BuyerID, Participants: o.HasSeller}
}

func ListingResource(sellerID string) Resource {
	return Resource{OwnerID: sellerID}
}

// Authorize returns nil, apperr.ErrUnauthorized for callers acting on
// something that is not theirs, or apperr.ErrForbidden for callers whose
// role does not allow the action at all.
func Authorize(actor Actor, action Action, res Resource) error {
	if actor.UserID == "" {
		return apperr.ErrUnauthorized
	}
	if actor.IsAdmin() {
		return nil
	}

	switch action {
	case ActionViewOrder:
		if res.OwnerID == actor.UserID || (res.Participants != nil && res.Participants(actor.UserID)) {
			return nil
		}
		return apperr.ErrUnauthorized
	case ActionCancelOrder:
		if res.OwnerID == actor.UserID {
			return nil
		}
		return apperr.ErrUnauthorized
	case ActionCreateListing:
		if actor.Role.IsSeller() {
			return nil
		}
		return apperr.ErrForbidden
	case ActionManageListing:
		if actor.Role.IsSeller() && res.OwnerID == actor.UserID {
			return nil
		}
		return apperr.ErrForbidden
	}
	return apperr.ErrForbidden
}
