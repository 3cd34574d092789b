package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var AllStatuses = []OrderStatus{StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "netbanking"
	PaymentWallet     PaymentMethod = "wallet"
	PaymentCOD        PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentUPI, PaymentNetBanking, PaymentWallet, PaymentCOD:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentDetails struct {
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
}

type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Missing lists the required address fields that are blank.
func (a ShippingAddress) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// LineItem is the price and name snapshot taken when the order was placed.
type LineItem struct {
	ItemID    string          `json:"itemId"`
	Kind      ItemKind        `json:"kind"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category,omitempty"`
	WasteType string          `json:"wasteType,omitempty"`
	Unit      string          `json:"unit"`
	SellerID  string          `json:"sellerId"`
	Image     string          `json:"image,omitempty"`
}

func (l LineItem) IsWasteProduct() bool { return l.Kind == KindWasteProduct }

func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Notes     string      `json:"notes,omitempty"`
	ActorID   string      `json:"actorId,omitempty"`
}

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	InvoiceNumber      string          `json:"invoiceNumber"`
	BuyerID            string          `json:"buyerId"`
	BuyerEmail         string          `json:"buyerEmail,omitempty"`
	Items              []LineItem      `json:"items"`
	ShippingAddress    ShippingAddress `json:"shippingAddress"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod"`
	PaymentDetails     PaymentDetails  `json:"paymentDetails"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"taxAmount"`
	ShippingAmount     decimal.Decimal `json:"shippingAmount"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	Status             OrderStatus     `json:"status"`
	StatusHistory      []StatusEntry   `json:"statusHistory"`
	EstimatedDelivery  time.Time       `json:"estimatedDelivery"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	TrackingNumber     string          `json:"trackingNumber,omitempty"`
	Carrier            string          `json:"carrier,omitempty"`
	Version            int             `json:"version"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// SetStatus moves the order to status and records exactly one history entry.
func (o *Order) SetStatus(status OrderStatus, at time.Time, notes, actorID string) {
	o.Status = status
	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    status,
		Timestamp: at,
		Notes:     notes,
		ActorID:   actorID,
	})
	o.UpdatedAt = at
	switch status {
	case StatusDelivered:
		o.DeliveredAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
		o.CancellationReason = notes
	}
}

func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

// SellerIDs returns each seller with a line item once, in line order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	var ids []string
	for _, l := range o.Items {
		if l.SellerID == "" || seen[l.SellerID] {
			continue
		}
		seen[l.SellerID] = true
		ids = append(ids, l.SellerID)
	}
	return ids
}

func (o *Order) HasSeller(sellerID string) bool {
	for _, l := range o.Items {
		if l.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerSubtotal sums the lines belonging to sellerID.
func (o *Order) SellerSubtotal(sellerID string) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Items {
		if l.SellerID == sellerID {
			sum = sum.Add(l.Total())
		}
	}
	return sum
}

func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	if o.PaymentDetails.PaidAt != nil {
		t := *o.PaymentDetails.PaidAt
		c.PaymentDetails.PaidAt = &t
	}
	return &c
}

// OrderFilter selects orders. Zero From/To leave that end of the creation
// time range open; To is exclusive.
type OrderFilter struct {
	BuyerID string
	Status  OrderStatus
	From    time.Time
	To      time.Time
	Page    int
	Limit   int
}
