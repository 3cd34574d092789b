package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	Kind     ItemKind  `json:"kind"`
	ItemID   string    `json:"itemId"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt"`
}

// Cart is created lazily; a user without a stored cart has an empty one.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Find returns the index of the line for kind/id, or -1.
func (c *Cart) Find(kind ItemKind, itemID string) int {
	for i, it := range c.Items {
		if it.Kind == kind && it.ItemID == itemID {
			return i
		}
	}
	return -1
}

// CartLine is a cart entry joined with live catalog data.
type CartLine struct {
	ItemID            string          `json:"itemId"`
	Kind              ItemKind        `json:"kind"`
	IsWasteProduct    bool            `json:"isWasteProduct"`
	Name              string          `json:"name"`
	Image             string          `json:"image,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	AvailableQuantity decimal.Decimal `json:"availableQuantity"`
	Unit              string          `json:"unit"`
	SellerID          string          `json:"sellerId"`
	LineTotal         decimal.Decimal `json:"lineTotal"`
}

type CartView struct {
	UserID    string          `json:"userId"`
	Items     []CartLine      `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
